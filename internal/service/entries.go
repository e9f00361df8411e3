package service

import (
	"strconv"

	"workoutmap/backend/internal/model"
)

type Detail struct {
	Icon  string `json:"icon"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Entry is one rendered item of the workout list.
type Entry struct {
	ID      string     `json:"id"`
	Type    model.Kind `json:"type"`
	Title   string     `json:"title"`
	Icon    string     `json:"icon"`
	Details []Detail   `json:"details"`
}

// renderEntry formats only stored fields; it never recomputes a metric.
func renderEntry(w model.Workout) Entry {
	entry := Entry{
		ID:    w.ID,
		Type:  w.Kind,
		Title: w.Description,
		Icon:  w.Icon(),
		Details: []Detail{
			{Icon: w.Icon(), Value: formatNumber(w.Distance), Unit: "km"},
			{Icon: "⏱", Value: formatNumber(w.Duration), Unit: "min"},
		},
	}

	switch w.Kind {
	case model.KindRunning:
		if w.Running != nil {
			entry.Details = append(entry.Details,
				Detail{Icon: "⚡️", Value: formatFixed1(w.Running.Pace), Unit: w.MetricUnit()},
				Detail{Icon: "🦶🏼", Value: formatNumber(w.Running.Cadence), Unit: "spm"},
			)
		}
	case model.KindCycling:
		if w.Cycling != nil {
			entry.Details = append(entry.Details,
				Detail{Icon: "⚡️", Value: formatFixed1(w.Cycling.Speed), Unit: w.MetricUnit()},
				Detail{Icon: "⛰", Value: formatNumber(w.Cycling.ElevationGain), Unit: "m"},
			)
		}
	}
	return entry
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFixed1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
