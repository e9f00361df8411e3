package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "workoutmap/backend/internal/errors"
	"workoutmap/backend/internal/service"
)

const deviceIDKey = "deviceID"

// DeviceAuth admits requests carrying a device token issued by
// POST /api/devices and records the device they belong to.
func DeviceAuth(devices *service.DeviceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, apperrors.Unauthorized("register a device first"))
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			abortWithError(c, apperrors.Unauthorized("expected a bearer device token"))
			return
		}

		deviceID, apiErr := devices.ParseToken(token)
		if apiErr != nil {
			abortWithError(c, apiErr)
			return
		}

		c.Set(deviceIDKey, deviceID)
		c.Next()
	}
}

// DeviceID is the device admitted by DeviceAuth, or "" outside that group.
func DeviceID(c *gin.Context) string {
	return c.GetString(deviceIDKey)
}

// bearerToken extracts the credential of an RFC 6750 bearer header. The
// scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortWithError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}
