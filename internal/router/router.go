package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workoutmap/backend/internal/handler"
	"workoutmap/backend/internal/middleware"
	"workoutmap/backend/internal/service"
	"workoutmap/backend/internal/web"
)

func New(
	deviceService *service.DeviceService,
	deviceHandler *handler.DeviceHandler,
	trackerHandler *handler.TrackerHandler,
	pageHandler *handler.PageHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.Metrics(), middleware.CORS(corsOrigins))
	engine.SetHTMLTemplate(web.Templates())
	engine.StaticFS("/static", http.FS(web.Static()))

	engine.GET("/", pageHandler.Index)
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.POST("/devices", deviceHandler.Register)

	tracker := api.Group("")
	tracker.Use(middleware.DeviceAuth(deviceService))
	tracker.POST("/session/start", trackerHandler.Start)
	tracker.GET("/state", trackerHandler.GetState)
	tracker.POST("/map/click", trackerHandler.ClickMap)
	tracker.PUT("/form/type", trackerHandler.ChangeType)
	tracker.POST("/form/cancel", trackerHandler.CancelForm)
	tracker.GET("/workouts", trackerHandler.ListWorkouts)
	tracker.POST("/workouts", trackerHandler.AddWorkout)
	tracker.GET("/workouts/export.gpx", trackerHandler.ExportGPX)
	tracker.POST("/workouts/:id/select", trackerHandler.SelectWorkout)

	return engine
}
