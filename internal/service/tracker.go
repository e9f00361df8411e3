package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"workoutmap/backend/internal/mapview"
	"workoutmap/backend/internal/metrics"
	"workoutmap/backend/internal/model"
	"workoutmap/backend/internal/storage"
)

var (
	ErrFormHidden   = errors.New("workout form is not open")
	ErrInvalidClick = errors.New("map click outside valid coordinates")
	ErrSaveFailed   = errors.New("workout could not be saved")
)

type TrackerConfig struct {
	Slot           string
	FallbackCenter model.Coords
	Zoom           int
	PanDuration    time.Duration
	IdleTTL        time.Duration
	Now            func() time.Time
}

const DefaultIdleTTL = 30 * time.Minute

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.Slot == "" {
		c.Slot = storage.DefaultSlot
	}
	if c.Zoom <= 0 {
		c.Zoom = mapview.DefaultZoom
	}
	if c.PanDuration <= 0 {
		c.PanDuration = mapview.DefaultPanDuration
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Tracker is the controller behind one map page. It owns the in-memory
// workout sequence, the map view and the entry form.
type Tracker struct {
	mu     sync.Mutex
	store  *storage.WorkoutStore
	logger *slog.Logger
	cfg    TrackerConfig

	view         *mapview.View
	zone         *time.Location
	loaded       bool
	form         FormState
	pendingClick *model.Coords
	kind         model.Kind
	cadenceShown bool
	elevShown    bool
	workouts     []model.Workout
	entries      []Entry
}

type TrackerState struct {
	Map      mapview.State `json:"map"`
	Form     FormView      `json:"form"`
	Workouts []Entry       `json:"workouts"`
}

func NewTracker(store *storage.WorkoutStore, cfg TrackerConfig, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		store:  store,
		logger: logger,
		cfg:    cfg.withDefaults(),
		view:   mapview.New(),
		form:   FormHidden,
		kind:   model.KindRunning,
	}
	t.toggleInputFieldForType(t.kind)
	return t
}

// Start brings the page up: persisted workouts are loaded and listed first,
// then the locator is asked for a position. Whichever callback fires
// initialises the map and places a marker for every workout in memory.
func (t *Tracker) Start(ctx context.Context, locator mapview.Locator) {
	t.mu.Lock()
	if !t.loaded {
		t.loadPersisted(ctx)
	}
	t.hideForm()
	t.toggleInputFieldForType(t.kind)
	t.mu.Unlock()

	locator.Locate(t.loadMap, t.loadDefaultMap)
}

// Load reads the persisted history once. Start calls it; reads that may
// reach a tracker before its Start (or after it was evicted) call it too.
func (t *Tracker) Load(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		t.loadPersisted(ctx)
	}
}

// SetZone sets the user's local zone. New workouts take their date, and so
// the day in their description, in that zone.
func (t *Tracker) SetZone(zone *time.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.zone = zone
}

func (t *Tracker) loadPersisted(ctx context.Context) {
	t.workouts = t.store.Load(ctx, t.cfg.Slot)
	t.entries = make([]Entry, 0, len(t.workouts))
	for _, w := range t.workouts {
		t.entries = append(t.entries, renderEntry(w))
	}
	t.loaded = true
	t.logger.Debug("loaded persisted workouts",
		slog.String("slot", t.cfg.Slot),
		slog.Int("count", len(t.workouts)),
	)
}

func (t *Tracker) loadMap(pos mapview.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initializeMap(pos.Coords, "geolocation")
}

func (t *Tracker) loadDefaultMap(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Info("using fallback map center", slog.Any("reason", err))
	t.initializeMap(t.cfg.FallbackCenter, "fallback")
}

func (t *Tracker) initializeMap(center model.Coords, source string) {
	t.view.Initialize(center, t.cfg.Zoom)
	t.view.OnMapClick(t.showForm)
	for _, w := range t.workouts {
		if err := t.view.PlaceMarker(w); err != nil {
			t.logger.Error("place marker", slog.String("id", w.ID), slog.Any("error", err))
		}
	}
	metrics.RecordMapStart(source)
}

// ClickMap forwards a click on the map surface; it opens the entry form at
// that location.
func (t *Tracker) ClickMap(coords model.Coords) (FormView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !coords.Valid() {
		return t.formView(), ErrInvalidClick
	}
	if err := t.view.Click(coords); err != nil {
		return t.formView(), err
	}
	return t.formView(), nil
}

func (t *Tracker) showForm(coords model.Coords) {
	click := coords
	t.pendingClick = &click
	t.form = FormVisible
}

func (t *Tracker) CancelForm() FormView {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hideForm()
	return t.formView()
}

func (t *Tracker) hideForm() {
	t.form = FormHidden
	t.pendingClick = nil
}

// ToggleInputFieldForType shows the cadence input for running and the
// elevation input for cycling.
func (t *Tracker) ToggleInputFieldForType(raw string) (FormView, error) {
	kind, err := model.ParseKind(raw)
	if err != nil {
		return t.Form(), err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.toggleInputFieldForType(kind)
	return t.formView(), nil
}

func (t *Tracker) toggleInputFieldForType(kind model.Kind) {
	t.kind = kind
	switch kind {
	case model.KindRunning:
		t.cadenceShown, t.elevShown = true, false
	case model.KindCycling:
		t.cadenceShown, t.elevShown = false, true
	}
}

// AddWorkout validates the form and records a workout at the captured click
// location. A rejected submission or a failed save changes nothing.
func (t *Tracker) AddWorkout(ctx context.Context, values FormValues) (model.Workout, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.form != FormVisible || t.pendingClick == nil {
		return model.Workout{}, ErrFormHidden
	}

	kind, err := model.ParseKind(values.Type)
	if err != nil {
		metrics.RecordValidationFailure("unknown")
		return model.Workout{}, &ValidationError{Type: values.Type, Fields: []string{"type"}, Message: unknownTypeMessage}
	}

	distance := coerceNumber(values.Distance)
	duration := coerceNumber(values.Duration)
	coords := *t.pendingClick

	var workout model.Workout
	switch kind {
	case model.KindRunning:
		cadence := coerceNumber(values.Cadence)
		inputs := []numericInput{{"duration", duration}, {"distance", distance}, {"cadence", cadence}}
		if verr := validate(string(kind), inputs, "duration", "distance", "cadence"); verr != nil {
			metrics.RecordValidationFailure(string(kind))
			return model.Workout{}, verr
		}
		workout = model.NewRunning(distance, duration, coords, cadence, t.nextTimestamp())
	case model.KindCycling:
		elevation := coerceNumber(values.Elevation)
		inputs := []numericInput{{"duration", duration}, {"distance", distance}, {"elevation", elevation}}
		// Elevation only has to be finite: a ride can climb nothing or descend.
		if verr := validate(string(kind), inputs, "duration", "distance"); verr != nil {
			metrics.RecordValidationFailure(string(kind))
			return model.Workout{}, verr
		}
		workout = model.NewCycling(distance, duration, coords, elevation, t.nextTimestamp())
	}

	if metric := workout.Metric(); math.IsNaN(metric) || math.IsInf(metric, 0) {
		metrics.RecordValidationFailure(string(kind))
		return model.Workout{}, &ValidationError{Type: string(kind), Fields: []string{"distance", "duration"}, Message: positiveNumberMessage}
	}

	// The slot is written before memory changes so a failed save leaves the
	// tracker exactly as it was, form included.
	next := make([]model.Workout, len(t.workouts), len(t.workouts)+1)
	copy(next, t.workouts)
	next = append(next, workout)
	if err := t.store.Save(ctx, t.cfg.Slot, next); err != nil {
		t.logger.Error("persist workouts", slog.String("slot", t.cfg.Slot), slog.Any("error", err))
		return model.Workout{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	t.workouts = next
	t.entries = append(t.entries, renderEntry(workout))
	if err := t.view.PlaceMarker(workout); err != nil {
		t.logger.Error("place marker", slog.String("id", workout.ID), slog.Any("error", err))
	}
	t.hideForm()
	metrics.RecordWorkoutAdded(string(kind))
	return workout, nil
}

// nextTimestamp returns the creation time for a new workout, nudged forward
// a millisecond at a time until its id is unused.
func (t *Tracker) nextTimestamp() time.Time {
	now := t.cfg.Now()
	if t.zone != nil {
		now = now.In(t.zone)
	}
	for t.hasID(model.IDFromTime(now)) {
		now = now.Add(time.Millisecond)
	}
	return now
}

func (t *Tracker) hasID(id string) bool {
	for _, w := range t.workouts {
		if w.ID == id {
			return true
		}
	}
	return false
}

// SelectWorkout recenters the map on the workout with the given id. Unknown
// or blank ids are ignored and report false.
func (t *Tracker) SelectWorkout(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, w := range t.workouts {
		if w.ID != id {
			continue
		}
		if err := t.view.Recenter(w.Coords, t.cfg.Zoom, t.cfg.PanDuration); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (t *Tracker) Workouts() []model.Workout {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Workout, len(t.workouts))
	copy(out, t.workouts)
	return out
}

func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entriesCopy()
}

func (t *Tracker) Form() FormView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.formView()
}

func (t *Tracker) MapState() mapview.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view.State()
}

func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackerState{
		Map:      t.view.State(),
		Form:     t.formView(),
		Workouts: t.entriesCopy(),
	}
}

func (t *Tracker) entriesCopy() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Tracker) formView() FormView {
	view := FormView{
		State:            t.form,
		Type:             t.kind,
		CadenceVisible:   t.cadenceShown,
		ElevationVisible: t.elevShown,
	}
	if t.pendingClick != nil {
		click := *t.pendingClick
		view.PendingClick = &click
	}
	if t.form == FormVisible {
		view.Focus = "distance"
	}
	return view
}
