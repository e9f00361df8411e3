// Package storage persists the ordered workout sequence into a single
// string-keyed slot as one JSON array.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"workoutmap/backend/internal/metrics"
	"workoutmap/backend/internal/model"
	"workoutmap/backend/internal/repository"
)

const DefaultSlot = "workouts"

// ErrNotFinite rejects a sequence holding a NaN or infinite number, which
// JSON cannot represent.
var ErrNotFinite = errors.New("workout has a non-finite value")

// SlotStore is the get/set primitive of the backing key-value store.
// Get returns repository.ErrNotFound for an empty slot.
type SlotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type WorkoutStore struct {
	slots  SlotStore
	logger *slog.Logger
}

func NewWorkoutStore(slots SlotStore, logger *slog.Logger) *WorkoutStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkoutStore{slots: slots, logger: logger}
}

// Save overwrites slot with the full sequence.
func (s *WorkoutStore) Save(ctx context.Context, slot string, workouts []model.Workout) error {
	records := make([]model.Record, 0, len(workouts))
	for _, w := range workouts {
		rec := w.Record()
		if !finite(rec) {
			return fmt.Errorf("save workouts: %s: %w", rec.ID, ErrNotFinite)
		}
		records = append(records, rec)
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode workouts: %w", err)
	}

	if err := s.slots.Set(ctx, slot, string(raw)); err != nil {
		return fmt.Errorf("save workouts: %w", err)
	}
	return nil
}

// Load returns the sequence stored in slot. An absent, unreadable or
// malformed slot yields nil: callers treat that as an empty history.
func (s *WorkoutStore) Load(ctx context.Context, slot string) []model.Workout {
	raw, err := s.slots.Get(ctx, slot)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.loadFailed(slot, "read slot", err)
		return nil
	}

	var records []model.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.loadFailed(slot, "decode slot", err)
		return nil
	}
	if records == nil {
		return nil
	}

	workouts := make([]model.Workout, 0, len(records))
	for _, rec := range records {
		w, err := model.FromRecord(rec)
		if err != nil {
			s.loadFailed(slot, "decode record", err)
			return nil
		}
		workouts = append(workouts, w)
	}
	return workouts
}

func finite(rec model.Record) bool {
	values := []float64{rec.Distance, rec.Duration, rec.Coords.Lat, rec.Coords.Lng}
	for _, p := range []*float64{rec.Cadence, rec.Pace, rec.ElevationGain, rec.Speed} {
		if p != nil {
			values = append(values, *p)
		}
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *WorkoutStore) loadFailed(slot, stage string, err error) {
	metrics.RecordStorageLoadFailure()
	s.logger.Warn("discarding persisted workouts",
		slog.String("slot", slot),
		slog.String("stage", stage),
		slog.Any("error", err),
	)
}
