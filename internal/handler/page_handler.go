package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workoutmap/backend/internal/model"
)

type PageHandler struct {
	title string
}

func NewPageHandler(title string) *PageHandler {
	if title == "" {
		title = "Workout Map"
	}
	return &PageHandler{title: title}
}

func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"Title": h.title,
		"Icons": gin.H{
			"running": model.IconRunning,
			"cycling": model.IconCycling,
		},
	})
}
