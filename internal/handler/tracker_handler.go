package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workoutmap/backend/internal/export"
	"workoutmap/backend/internal/mapview"
	"workoutmap/backend/internal/middleware"
	"workoutmap/backend/internal/model"
	"workoutmap/backend/internal/service"
)

type TrackerHandler struct {
	trackerService *service.TrackerService
	logger         *slog.Logger
}

type coordsRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (r coordsRequest) coords() (model.Coords, bool) {
	if r.Lat == nil || r.Lng == nil {
		return model.Coords{}, false
	}
	return model.Coords{Lat: *r.Lat, Lng: *r.Lng}, true
}

type startRequest struct {
	Position *coordsRequest `json:"position"`
	Error    string         `json:"error"`

	// Minutes east of UTC, as the page's clock reports it.
	UTCOffsetMinutes *int `json:"utcOffsetMinutes"`
}

// maxUTCOffsetMinutes bounds real zone offsets (UTC-12 to UTC+14).
const maxUTCOffsetMinutes = 14 * 60

func (r startRequest) zone() *time.Location {
	if r.UTCOffsetMinutes == nil {
		return nil
	}
	minutes := *r.UTCOffsetMinutes
	if minutes < -maxUTCOffsetMinutes || minutes > maxUTCOffsetMinutes {
		return nil
	}
	return time.FixedZone("", minutes*60)
}

type typeRequest struct {
	Type string `json:"type"`
}

// formField accepts a form value sent either as a string or as a JSON number.
type formField string

func (f *formField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = formField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("form field must be a string or number: %w", err)
	}
	*f = formField(n.String())
	return nil
}

type workoutRequest struct {
	Type      string    `json:"type"`
	Distance  formField `json:"distance"`
	Duration  formField `json:"duration"`
	Cadence   formField `json:"cadence"`
	Elevation formField `json:"elevation"`
}

func NewTrackerHandler(trackerService *service.TrackerService, logger *slog.Logger) *TrackerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackerHandler{trackerService: trackerService, logger: logger}
}

// Start reports the outcome of the browser's geolocation lookup and brings
// the map up at the user's position or at the fallback center.
func (h *TrackerHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	report := mapview.PositionReport{Err: req.Error}
	if req.Position != nil {
		if coords, ok := req.Position.coords(); ok {
			report.Coords = &coords
		}
	}

	state := h.trackerService.Start(c.Request.Context(), middleware.DeviceID(c), report, req.zone())
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *TrackerHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.trackerService.State(c.Request.Context(), middleware.DeviceID(c))})
}

func (h *TrackerHandler) ClickMap(c *gin.Context) {
	var req coordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	coords, ok := req.coords()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_coords", "message": "lat and lng are required"},
		})
		return
	}

	form, apiErr := h.trackerService.ClickMap(middleware.DeviceID(c), coords)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"form": form})
}

func (h *TrackerHandler) ChangeType(c *gin.Context) {
	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	form, apiErr := h.trackerService.ChangeType(middleware.DeviceID(c), req.Type)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"form": form})
}

func (h *TrackerHandler) CancelForm(c *gin.Context) {
	form := h.trackerService.CancelForm(middleware.DeviceID(c))
	c.JSON(http.StatusOK, gin.H{"form": form})
}

func (h *TrackerHandler) ListWorkouts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workouts": h.trackerService.Entries(c.Request.Context(), middleware.DeviceID(c))})
}

func (h *TrackerHandler) AddWorkout(c *gin.Context) {
	var req workoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	deviceID := middleware.DeviceID(c)
	workout, apiErr := h.trackerService.AddWorkout(c.Request.Context(), deviceID, service.FormValues{
		Type:      req.Type,
		Distance:  string(req.Distance),
		Duration:  string(req.Duration),
		Cadence:   string(req.Cadence),
		Elevation: string(req.Elevation),
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"workout": workout,
		"state":   h.trackerService.State(c.Request.Context(), deviceID),
	})
}

func (h *TrackerHandler) SelectWorkout(c *gin.Context) {
	result, apiErr := h.trackerService.SelectWorkout(middleware.DeviceID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TrackerHandler) ExportGPX(c *gin.Context) {
	workouts := h.trackerService.Workouts(c.Request.Context(), middleware.DeviceID(c))
	raw, err := export.GPX("Workouts", workouts)
	if err != nil {
		h.logger.Error("export gpx", slog.Any("error", err))
		writeError(c, nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="workouts.gpx"`)
	c.Data(http.StatusOK, "application/gpx+xml", raw)
}
