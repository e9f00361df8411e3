package router_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"workoutmap/backend/internal/db"
	"workoutmap/backend/internal/handler"
	"workoutmap/backend/internal/model"
	"workoutmap/backend/internal/repository"
	"workoutmap/backend/internal/router"
	"workoutmap/backend/internal/service"
	"workoutmap/backend/internal/storage"
	"workoutmap/backend/migrations"
)

var fallbackCenter = model.Coords{Lat: 35.69404895695763, Lng: 51.38721244128801}

type deviceResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
}

type stateEnvelope struct {
	State struct {
		Map struct {
			Ready   bool       `json:"ready"`
			Center  [2]float64 `json:"center"`
			Zoom    int        `json:"zoom"`
			Markers []struct {
				WorkoutID string `json:"workoutId"`
				Content   string `json:"content"`
			} `json:"markers"`
		} `json:"map"`
		Form struct {
			State string `json:"state"`
		} `json:"form"`
		Workouts []struct {
			ID    string `json:"id"`
			Type  string `json:"type"`
			Title string `json:"title"`
			Icon  string `json:"icon"`
		} `json:"workouts"`
	} `json:"state"`
}

type formEnvelope struct {
	Form struct {
		State            string     `json:"state"`
		Type             string     `json:"type"`
		PendingClick     [2]float64 `json:"pendingClick"`
		CadenceVisible   bool       `json:"cadenceVisible"`
		ElevationVisible bool       `json:"elevationVisible"`
	} `json:"form"`
}

type workoutEnvelope struct {
	Workout struct {
		ID          string     `json:"id"`
		Type        string     `json:"type"`
		Coords      [2]float64 `json:"coords"`
		Pace        float64    `json:"pace"`
		Cadence     float64    `json:"cadence"`
		Description string     `json:"description"`
	} `json:"workout"`
}

type selectEnvelope struct {
	Selected bool `json:"selected"`
	Map      struct {
		Center [2]float64 `json:"center"`
		Pan    *struct {
			Animate bool `json:"animate"`
		} `json:"pan"`
	} `json:"map"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Fields []string `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func TestWorkoutLifecycle(t *testing.T) {
	database := openTestDB(t)
	engine := newTestEngine(database)
	device := registerDevice(t, engine)

	state := startSession(t, engine, device.Token, map[string]string{"error": "User denied Geolocation"})
	if !state.State.Map.Ready {
		t.Fatal("expected map to be ready after fallback start")
	}
	if state.State.Map.Center != [2]float64{fallbackCenter.Lat, fallbackCenter.Lng} {
		t.Fatalf("expected fallback center, got %v", state.State.Map.Center)
	}
	if state.State.Form.State != "hidden" {
		t.Fatalf("expected hidden form, got %s", state.State.Form.State)
	}

	running := map[string]string{"type": "running", "distance": "5", "duration": "30", "cadence": "150"}

	// Submitting before clicking the map has no location to record.
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/workouts", device.Token, running)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 before map click, got %d: %s", status, raw)
	}
	if code := decodeError(t, raw).Error.Code; code != "form_hidden" {
		t.Fatalf("expected form_hidden, got %s", code)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/map/click", device.Token, map[string]float64{"lat": 10, "lng": 20})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on map click, got %d: %s", status, raw)
	}
	var form formEnvelope
	mustUnmarshal(t, raw, &form)
	if form.Form.State != "visible" || form.Form.PendingClick != [2]float64{10, 20} {
		t.Fatalf("unexpected form after click: %+v", form.Form)
	}

	invalid := map[string]string{"type": "running", "distance": "abc", "duration": "30", "cadence": "0"}
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/workouts", device.Token, invalid)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid workout, got %d: %s", status, raw)
	}
	apiErr := decodeError(t, raw)
	if apiErr.Error.Code != "invalid_workout" || apiErr.Error.Message != "Please Enter A Positive Number!" {
		t.Fatalf("unexpected validation error: %+v", apiErr.Error)
	}
	if len(apiErr.Error.Details.Fields) != 2 {
		t.Fatalf("expected distance and cadence to fail, got %v", apiErr.Error.Details.Fields)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/workouts", device.Token, running)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for valid workout, got %d: %s", status, raw)
	}
	var created workoutEnvelope
	mustUnmarshal(t, raw, &created)
	if created.Workout.Pace != 6 || created.Workout.Type != "running" || created.Workout.Coords != [2]float64{10, 20} {
		t.Fatalf("unexpected workout: %+v", created.Workout)
	}

	state = getState(t, engine, device.Token)
	if len(state.State.Workouts) != 1 || state.State.Workouts[0].Icon != model.IconRunning {
		t.Fatalf("expected one running entry, got %+v", state.State.Workouts)
	}
	if len(state.State.Map.Markers) != 1 || !strings.HasPrefix(state.State.Map.Markers[0].Content, model.IconRunning) {
		t.Fatalf("expected one running marker, got %+v", state.State.Map.Markers)
	}
	if state.State.Form.State != "hidden" {
		t.Fatalf("expected form hidden after submit, got %s", state.State.Form.State)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/workouts/"+created.Workout.ID+"/select", device.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on select, got %d", status)
	}
	var selected selectEnvelope
	mustUnmarshal(t, raw, &selected)
	if !selected.Selected || selected.Map.Center != [2]float64{10, 20} || selected.Map.Pan == nil || !selected.Map.Pan.Animate {
		t.Fatalf("expected recenter on workout, got %+v", selected)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/workouts/nope/select", device.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on unknown select, got %d", status)
	}
	mustUnmarshal(t, raw, &selected)
	if selected.Selected {
		t.Fatal("expected unknown id to be a no-op")
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/workouts/export.gpx", device.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on export, got %d", status)
	}
	if !bytes.Contains(raw, []byte("<wpt")) || !bytes.Contains(raw, []byte(created.Workout.Description)) {
		t.Fatalf("expected waypoint in export, got %s", raw)
	}

	// A restarted server reads the same history back from the slot.
	restarted := newTestEngine(database)
	state = startSession(t, restarted, device.Token, map[string]any{"position": map[string]float64{"lat": 52.5, "lng": 13.4}})
	if len(state.State.Workouts) != 1 || state.State.Workouts[0].ID != created.Workout.ID {
		t.Fatalf("expected persisted workout after restart, got %+v", state.State.Workouts)
	}
	if len(state.State.Map.Markers) != 1 || state.State.Map.Center != [2]float64{52.5, 13.4} {
		t.Fatalf("expected marker at user position map, got %+v", state.State.Map)
	}
}

func TestTypeToggleAndCancel(t *testing.T) {
	engine := newTestEngine(openTestDB(t))
	device := registerDevice(t, engine)
	startSession(t, engine, device.Token, map[string]string{"error": "timeout"})

	status, raw := requestJSON(t, engine, http.MethodPut, "/api/form/type", device.Token, map[string]string{"type": "cycling"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on type change, got %d", status)
	}
	var form formEnvelope
	mustUnmarshal(t, raw, &form)
	if form.Form.CadenceVisible || !form.Form.ElevationVisible {
		t.Fatalf("expected only elevation visible, got %+v", form.Form)
	}

	status, _ = requestJSON(t, engine, http.MethodPut, "/api/form/type", device.Token, map[string]string{"type": "hiking"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", status)
	}

	requestJSON(t, engine, http.MethodPost, "/api/map/click", device.Token, map[string]float64{"lat": 1, "lng": 2})
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/form/cancel", device.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d", status)
	}
	mustUnmarshal(t, raw, &form)
	if form.Form.State != "hidden" {
		t.Fatalf("expected hidden after cancel, got %s", form.Form.State)
	}

	// Numbers are accepted as well as strings; elevation may be negative.
	requestJSON(t, engine, http.MethodPost, "/api/map/click", device.Token, map[string]float64{"lat": 1, "lng": 2})
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/workouts", device.Token, map[string]any{
		"type": "cycling", "distance": 27, "duration": 95, "elevation": -40,
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for cycling workout, got %d: %s", status, raw)
	}
}

func TestOverflowingWorkoutIsRejectedAndHistoryKeepsSaving(t *testing.T) {
	database := openTestDB(t)
	engine := newTestEngine(database)
	device := registerDevice(t, engine)
	startSession(t, engine, device.Token, map[string]any{"error": "denied", "utcOffsetMinutes": 120})

	requestJSON(t, engine, http.MethodPost, "/api/map/click", device.Token, map[string]float64{"lat": 1, "lng": 2})
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/workouts", device.Token, map[string]string{
		"type": "cycling", "distance": "5e-324", "duration": "30", "elevation": "10",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for overflowing speed, got %d: %s", status, raw)
	}
	if code := decodeError(t, raw).Error.Code; code != "invalid_workout" {
		t.Fatalf("expected invalid_workout, got %s", code)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/workouts", device.Token, map[string]string{
		"type": "running", "distance": "5", "duration": "30", "cadence": "150",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 after rejected overflow, got %d: %s", status, raw)
	}
	var created workoutEnvelope
	mustUnmarshal(t, raw, &created)

	restarted := newTestEngine(database)
	state := getState(t, restarted, device.Token)
	if len(state.State.Workouts) != 1 || state.State.Workouts[0].ID != created.Workout.ID {
		t.Fatalf("expected only the valid workout persisted, got %+v", state.State.Workouts)
	}
}

func TestTrackerRoutesRequireDeviceToken(t *testing.T) {
	engine := newTestEngine(openTestDB(t))

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/state", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if code := decodeError(t, raw).Error.Code; code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %s", code)
	}

	status, _ = requestJSON(t, engine, http.MethodGet, "/api/workouts", "not-a-jwt", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}

	device := registerDevice(t, engine)
	req := httptest.NewRequest(http.MethodGet, "/api/workouts", nil)
	req.Header.Set("Authorization", "bearer "+device.Token)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected lowercase bearer scheme to be accepted, got %d", recorder.Code)
	}
}

func TestDevicesAreIsolated(t *testing.T) {
	engine := newTestEngine(openTestDB(t))
	first := registerDevice(t, engine)
	second := registerDevice(t, engine)
	if first.DeviceID == second.DeviceID {
		t.Fatal("expected distinct device ids")
	}

	startSession(t, engine, first.Token, map[string]string{"error": "denied"})
	requestJSON(t, engine, http.MethodPost, "/api/map/click", first.Token, map[string]float64{"lat": 1, "lng": 2})
	status, _ := requestJSON(t, engine, http.MethodPost, "/api/workouts", first.Token, map[string]string{
		"type": "running", "distance": "3", "duration": "18", "cadence": "172",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}

	state := startSession(t, engine, second.Token, map[string]string{"error": "denied"})
	if len(state.State.Workouts) != 0 {
		t.Fatalf("expected no workouts for second device, got %d", len(state.State.Workouts))
	}
}

func TestPageHealthAndMetrics(t *testing.T) {
	engine := newTestEngine(openTestDB(t))

	status, raw := requestJSON(t, engine, http.MethodGet, "/", "", nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte("form__input--type")) {
		t.Fatalf("expected index page, got %d", status)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/static/app.js", "", nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte("/api/session/start")) {
		t.Fatalf("expected app script, got %d", status)
	}

	status, _ = requestJSON(t, engine, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on health, got %d", status)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/metrics", "", nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte("workoutmap_http_requests_total")) {
		t.Fatalf("expected metrics output, got %d", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := newTestEngine(openTestDB(t))
	req := httptest.NewRequest(http.MethodOptions, "/api/workouts", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:8080" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/workouts", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for preflight from unknown origin, got %d", recorder.Code)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if _, err := db.RunMigrations(database, migrations.FS); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func newTestEngine(database *sql.DB) http.Handler {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewWorkoutStore(repository.NewSlotRepository(database), logger)
	deviceService := service.NewDeviceService("test-secret", 24*time.Hour)
	trackerService := service.NewTrackerService(store, service.TrackerConfig{
		Slot:           storage.DefaultSlot,
		FallbackCenter: fallbackCenter,
	}, logger)

	return router.New(
		deviceService,
		handler.NewDeviceHandler(deviceService),
		handler.NewTrackerHandler(trackerService, logger),
		handler.NewPageHandler(""),
		[]string{"http://localhost:8080"},
	)
}

func registerDevice(t *testing.T, server http.Handler) deviceResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/devices", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("register device failed with status %d: %s", status, string(body))
	}
	var resp deviceResponse
	mustUnmarshal(t, body, &resp)
	if resp.Token == "" {
		t.Fatal("empty device token")
	}
	return resp
}

func startSession(t *testing.T, server http.Handler, token string, body interface{}) stateEnvelope {
	t.Helper()
	status, raw := requestJSON(t, server, http.MethodPost, "/api/session/start", token, body)
	if status != http.StatusOK {
		t.Fatalf("start session failed with status %d: %s", status, string(raw))
	}
	var resp stateEnvelope
	mustUnmarshal(t, raw, &resp)
	return resp
}

func getState(t *testing.T, server http.Handler, token string) stateEnvelope {
	t.Helper()
	status, raw := requestJSON(t, server, http.MethodGet, "/api/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get state failed with status %d: %s", status, string(raw))
	}
	var resp stateEnvelope
	mustUnmarshal(t, raw, &resp)
	return resp
}

func decodeError(t *testing.T, raw []byte) apiErrorEnvelope {
	t.Helper()
	var resp apiErrorEnvelope
	mustUnmarshal(t, raw, &resp)
	return resp
}

func mustUnmarshal(t *testing.T, raw []byte, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, dest); err != nil {
		t.Fatalf("unmarshal %s: %v", string(raw), err)
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
