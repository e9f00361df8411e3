// Package export renders recorded workouts in interchange formats.
package export

import (
	"fmt"
	"strconv"

	"github.com/tkrajina/gpxgo/gpx"

	"workoutmap/backend/internal/model"
)

const creator = "workoutmap"

// GPX returns a GPX 1.1 document with one waypoint per workout, in order.
func GPX(name string, workouts []model.Workout) ([]byte, error) {
	doc := gpx.GPX{
		Creator: creator,
		Name:    name,
	}
	for _, w := range workouts {
		doc.Waypoints = append(doc.Waypoints, waypoint(w))
	}

	raw, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("encode gpx: %w", err)
	}
	return raw, nil
}

func waypoint(w model.Workout) gpx.GPXPoint {
	point := gpx.GPXPoint{
		Point: gpx.Point{
			Latitude:  w.Coords.Lat,
			Longitude: w.Coords.Lng,
		},
		Timestamp:   w.Date.UTC(),
		Name:        w.Description,
		Type:        string(w.Kind),
		Comment:     w.ID,
		Description: summary(w),
	}
	return point
}

func summary(w model.Workout) string {
	text := fmt.Sprintf("%s km in %s min, %s %s",
		strconv.FormatFloat(w.Distance, 'f', -1, 64),
		strconv.FormatFloat(w.Duration, 'f', -1, 64),
		strconv.FormatFloat(w.Metric(), 'f', 1, 64),
		w.MetricUnit(),
	)
	switch w.Kind {
	case model.KindRunning:
		if w.Running != nil {
			text += fmt.Sprintf(", %s spm", strconv.FormatFloat(w.Running.Cadence, 'f', -1, 64))
		}
	case model.KindCycling:
		if w.Cycling != nil {
			text += fmt.Sprintf(", %s m gain", strconv.FormatFloat(w.Cycling.ElevationGain, 'f', -1, 64))
		}
	}
	return text
}
