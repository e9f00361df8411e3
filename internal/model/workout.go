package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindRunning Kind = "running"
	KindCycling Kind = "cycling"
)

const (
	IconRunning = "🏃‍♂️"
	IconCycling = "🚴‍♂️"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.TrimSpace(raw)) {
	case KindRunning:
		return KindRunning, nil
	case KindCycling:
		return KindCycling, nil
	default:
		return "", fmt.Errorf("unknown workout type %q", raw)
	}
}

// Workout is one recorded session. Exactly one of Running or Cycling is set,
// matching Kind. Derived fields are computed once by the constructors.
type Workout struct {
	ID          string
	Kind        Kind
	Date        time.Time
	Distance    float64 // km
	Duration    float64 // min
	Coords      Coords
	Description string

	Running *RunningData
	Cycling *CyclingData
}

type RunningData struct {
	Cadence float64 // steps/min
	Pace    float64 // min/km
}

type CyclingData struct {
	ElevationGain float64 // m
	Speed         float64 // km/h
}

func NewRunning(distance, duration float64, coords Coords, cadence float64, now time.Time) Workout {
	w := newBase(KindRunning, distance, duration, coords, now)
	w.Running = &RunningData{
		Cadence: cadence,
		Pace:    RunningPace(distance, duration),
	}
	w.Description = describe(w.Kind, w.Date)
	return w
}

func NewCycling(distance, duration float64, coords Coords, elevationGain float64, now time.Time) Workout {
	w := newBase(KindCycling, distance, duration, coords, now)
	w.Cycling = &CyclingData{
		ElevationGain: elevationGain,
		Speed:         CyclingSpeed(distance, duration),
	}
	w.Description = describe(w.Kind, w.Date)
	return w
}

// RunningPace returns minutes per kilometre.
func RunningPace(distance, duration float64) float64 {
	return duration / distance
}

// CyclingSpeed reproduces the recorded formula distance / (distance / 60).
// It evaluates to 60 for any nonzero distance and ignores duration; the
// likely intent was distance / (duration / 60). Left as is pending a product
// decision.
func CyclingSpeed(distance, duration float64) float64 {
	return distance / (distance / 60)
}

// IDFromTime derives a record id from the last 10 digits of the creation
// time in milliseconds.
func IDFromTime(t time.Time) string {
	id := strconv.FormatInt(t.UnixMilli(), 10)
	if len(id) > 10 {
		id = id[len(id)-10:]
	}
	return id
}

func (w Workout) Metric() float64 {
	switch w.Kind {
	case KindRunning:
		if w.Running == nil {
			return 0
		}
		return w.Running.Pace
	case KindCycling:
		if w.Cycling == nil {
			return 0
		}
		return w.Cycling.Speed
	default:
		return 0
	}
}

func (w Workout) Icon() string {
	switch w.Kind {
	case KindRunning:
		return IconRunning
	case KindCycling:
		return IconCycling
	default:
		return ""
	}
}

func (w Workout) MetricUnit() string {
	switch w.Kind {
	case KindRunning:
		return "min/km"
	case KindCycling:
		return "km/h"
	default:
		return ""
	}
}

func (w Workout) PopupClass() string {
	return string(w.Kind) + "-popup"
}

func newBase(kind Kind, distance, duration float64, coords Coords, now time.Time) Workout {
	return Workout{
		ID:       IDFromTime(now),
		Kind:     kind,
		Date:     now,
		Distance: distance,
		Duration: duration,
		Coords:   coords,
	}
}

func describe(kind Kind, date time.Time) string {
	name := string(kind)
	if name == "" {
		return ""
	}
	return fmt.Sprintf("%s%s on %s %d", strings.ToUpper(name[:1]), name[1:], date.Month().String(), date.Day())
}
