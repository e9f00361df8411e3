package model

import (
	"fmt"
	"time"
)

// Record is the persisted form of a Workout. It is plain data: derived
// metrics are stored values and are never recomputed after decoding.
type Record struct {
	Type          Kind      `json:"type"`
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	Distance      float64   `json:"distance"`
	Duration      float64   `json:"duration"`
	Coords        Coords    `json:"coords"`
	Description   string    `json:"description"`
	Cadence       *float64  `json:"cadence,omitempty"`
	Pace          *float64  `json:"pace,omitempty"`
	ElevationGain *float64  `json:"elevationGain,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
}

func (w Workout) Record() Record {
	rec := Record{
		Type:        w.Kind,
		ID:          w.ID,
		Date:        w.Date,
		Distance:    w.Distance,
		Duration:    w.Duration,
		Coords:      w.Coords,
		Description: w.Description,
	}
	switch w.Kind {
	case KindRunning:
		if w.Running != nil {
			rec.Cadence = float64Ptr(w.Running.Cadence)
			rec.Pace = float64Ptr(w.Running.Pace)
		}
	case KindCycling:
		if w.Cycling != nil {
			rec.ElevationGain = float64Ptr(w.Cycling.ElevationGain)
			rec.Speed = float64Ptr(w.Cycling.Speed)
		}
	}
	return rec
}

// FromRecord rebuilds a Workout from its persisted form without re-running
// the constructors.
func FromRecord(rec Record) (Workout, error) {
	w := Workout{
		ID:          rec.ID,
		Kind:        rec.Type,
		Date:        rec.Date,
		Distance:    rec.Distance,
		Duration:    rec.Duration,
		Coords:      rec.Coords,
		Description: rec.Description,
	}

	switch rec.Type {
	case KindRunning:
		if rec.Cadence == nil || rec.Pace == nil {
			return Workout{}, fmt.Errorf("running record %s: missing cadence or pace", rec.ID)
		}
		w.Running = &RunningData{Cadence: *rec.Cadence, Pace: *rec.Pace}
	case KindCycling:
		if rec.ElevationGain == nil || rec.Speed == nil {
			return Workout{}, fmt.Errorf("cycling record %s: missing elevationGain or speed", rec.ID)
		}
		w.Cycling = &CyclingData{ElevationGain: *rec.ElevationGain, Speed: *rec.Speed}
	default:
		return Workout{}, fmt.Errorf("record %s: unknown type %q", rec.ID, rec.Type)
	}

	return w, nil
}

func float64Ptr(v float64) *float64 {
	return &v
}
