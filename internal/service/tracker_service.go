package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "workoutmap/backend/internal/errors"
	"workoutmap/backend/internal/mapview"
	"workoutmap/backend/internal/metrics"
	"workoutmap/backend/internal/model"
	"workoutmap/backend/internal/storage"
)

// TrackerService keeps one Tracker per device and translates tracker errors
// into API errors. Trackers idle for longer than IdleTTL are dropped; their
// history stays in the slot and is read back on next use.
type TrackerService struct {
	mu        sync.Mutex
	trackers  map[string]*Tracker
	lastSeen  map[string]time.Time
	lastSweep time.Time
	store     *storage.WorkoutStore
	cfg       TrackerConfig
	logger    *slog.Logger
}

type SelectResult struct {
	Selected bool          `json:"selected"`
	Map      mapview.State `json:"map"`
}

func NewTrackerService(store *storage.WorkoutStore, cfg TrackerConfig, logger *slog.Logger) *TrackerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackerService{
		trackers: make(map[string]*Tracker),
		lastSeen: make(map[string]time.Time),
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// SlotFor returns the storage slot that holds a device's workouts.
func SlotFor(base, deviceID string) string {
	if deviceID == "" {
		return base
	}
	return base + ":" + deviceID
}

// Tracker returns the device's tracker, creating it on first use.
func (s *TrackerService) Tracker(deviceID string) *Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Now()
	s.evictIdle(now)
	s.lastSeen[deviceID] = now

	if t, ok := s.trackers[deviceID]; ok {
		return t
	}
	cfg := s.cfg
	cfg.Slot = SlotFor(s.cfg.Slot, deviceID)
	t := NewTracker(s.store, cfg, s.logger.With(slog.String("device", deviceID)))
	s.trackers[deviceID] = t
	return t
}

// evictIdle sweeps at most every quarter TTL. Callers hold s.mu.
func (s *TrackerService) evictIdle(now time.Time) {
	if now.Sub(s.lastSweep) < s.cfg.IdleTTL/4 {
		return
	}
	s.lastSweep = now

	evicted := 0
	for deviceID, seen := range s.lastSeen {
		if now.Sub(seen) < s.cfg.IdleTTL {
			continue
		}
		delete(s.trackers, deviceID)
		delete(s.lastSeen, deviceID)
		evicted++
	}
	if evicted > 0 {
		metrics.RecordTrackersEvicted(evicted)
		s.logger.Debug("evicted idle trackers", slog.Int("count", evicted), slog.Int("remaining", len(s.trackers)))
	}
}

// loaded returns the device's tracker with its persisted history read in.
func (s *TrackerService) loaded(ctx context.Context, deviceID string) *Tracker {
	t := s.Tracker(deviceID)
	t.Load(ctx)
	return t
}

// Start brings the device's page up. A non-nil zone sets the user's local
// time zone for new workouts.
func (s *TrackerService) Start(ctx context.Context, deviceID string, report mapview.PositionReport, zone *time.Location) TrackerState {
	t := s.Tracker(deviceID)
	if zone != nil {
		t.SetZone(zone)
	}
	t.Start(ctx, report)
	return t.State()
}

func (s *TrackerService) State(ctx context.Context, deviceID string) TrackerState {
	return s.loaded(ctx, deviceID).State()
}

func (s *TrackerService) ClickMap(deviceID string, coords model.Coords) (*FormView, *apperrors.APIError) {
	form, err := s.Tracker(deviceID).ClickMap(coords)
	if err != nil {
		return nil, s.toAPIError(err)
	}
	return &form, nil
}

func (s *TrackerService) ChangeType(deviceID, kind string) (*FormView, *apperrors.APIError) {
	form, err := s.Tracker(deviceID).ToggleInputFieldForType(kind)
	if err != nil {
		return nil, apperrors.BadRequest("invalid_type", "type must be one of running, cycling")
	}
	return &form, nil
}

func (s *TrackerService) CancelForm(deviceID string) FormView {
	return s.Tracker(deviceID).CancelForm()
}

func (s *TrackerService) AddWorkout(ctx context.Context, deviceID string, values FormValues) (*model.Record, *apperrors.APIError) {
	workout, err := s.Tracker(deviceID).AddWorkout(ctx, values)
	if err != nil {
		return nil, s.toAPIError(err)
	}
	rec := workout.Record()
	return &rec, nil
}

func (s *TrackerService) Entries(ctx context.Context, deviceID string) []Entry {
	return s.loaded(ctx, deviceID).Entries()
}

func (s *TrackerService) Workouts(ctx context.Context, deviceID string) []model.Workout {
	return s.loaded(ctx, deviceID).Workouts()
}

func (s *TrackerService) SelectWorkout(deviceID, workoutID string) (*SelectResult, *apperrors.APIError) {
	t := s.Tracker(deviceID)
	selected, err := t.SelectWorkout(workoutID)
	if err != nil {
		return nil, s.toAPIError(err)
	}
	return &SelectResult{Selected: selected, Map: t.MapState()}, nil
}

func (s *TrackerService) toAPIError(err error) *apperrors.APIError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return apperrors.Invalid("invalid_workout", verr.Message, verr)
	case errors.Is(err, ErrFormHidden):
		return apperrors.Conflict("form_hidden", "click the map to open the workout form first", nil)
	case errors.Is(err, mapview.ErrNotInitialized):
		return apperrors.Conflict("map_not_ready", "the map has not been started yet", nil)
	case errors.Is(err, ErrInvalidClick):
		return apperrors.BadRequest("invalid_coords", "coordinates are out of range")
	case errors.Is(err, ErrSaveFailed):
		return apperrors.Internal("workout could not be saved, please try again")
	default:
		s.logger.Error("tracker operation failed", slog.Any("error", err))
		return apperrors.Internal("")
	}
}
