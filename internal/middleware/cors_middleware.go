package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// The page is served same-origin; cross-origin callers only ever reach the
// JSON API, which uses these methods and headers.
const (
	corsPathPrefix     = "/api/"
	corsAllowedMethods = "GET, POST, PUT"
	corsAllowedHeaders = "Authorization, Content-Type"
	corsExposedHeaders = "Content-Disposition"
	corsMaxAgeSeconds  = "600"
)

type corsPolicy struct {
	origins  map[string]struct{}
	wildcard bool
}

func newCORSPolicy(origins []string) corsPolicy {
	policy := corsPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			policy.wildcard = true
		default:
			policy.origins[origin] = struct{}{}
		}
	}
	return policy
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin.
func (p corsPolicy) allowOrigin(origin string) (string, bool) {
	if p.wildcard {
		return "*", true
	}
	if _, ok := p.origins[origin]; ok {
		return origin, true
	}
	return "", false
}

// CORS lets the configured origins call the tracker API. Preflights from any
// other origin are refused with 403; plain requests from them get no CORS
// headers and are left to the browser to block.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !strings.HasPrefix(c.Request.URL.Path, corsPathPrefix) {
			c.Next()
			return
		}

		allowed, ok := policy.allowOrigin(origin)
		preflight := c.Request.Method == http.MethodOptions &&
			c.GetHeader("Access-Control-Request-Method") != ""

		if !ok {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", allowed)
		if allowed != "*" {
			c.Header("Vary", "Origin")
		}

		if preflight {
			c.Header("Access-Control-Allow-Methods", corsAllowedMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowedHeaders)
			c.Header("Access-Control-Max-Age", corsMaxAgeSeconds)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header("Access-Control-Expose-Headers", corsExposedHeaders)
		c.Next()
	}
}
