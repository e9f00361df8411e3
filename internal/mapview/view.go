// Package mapview keeps the state of the interactive map: viewport, markers
// and the click handler. The browser paints whatever this state says.
package mapview

import (
	"errors"
	"time"

	"workoutmap/backend/internal/model"
)

const (
	DefaultZoom        = 13
	DefaultPanDuration = time.Second
)

var ErrNotInitialized = errors.New("map view not initialized")

// Popup options match a sticky popup: it stays open when other popups open
// or when the map is clicked.
type Marker struct {
	WorkoutID    string       `json:"workoutId"`
	Coords       model.Coords `json:"coords"`
	Content      string       `json:"content"`
	ClassName    string       `json:"className"`
	AutoClose    bool         `json:"autoClose"`
	CloseOnClick bool         `json:"closeOnClick"`
}

type Pan struct {
	Animate  bool    `json:"animate"`
	Duration float64 `json:"durationSeconds"`
}

type State struct {
	Ready   bool          `json:"ready"`
	Center  *model.Coords `json:"center,omitempty"`
	Zoom    int           `json:"zoom,omitempty"`
	Pan     *Pan          `json:"pan,omitempty"`
	Markers []Marker      `json:"markers"`
}

type ClickHandler func(coords model.Coords)

type View struct {
	ready   bool
	center  model.Coords
	zoom    int
	pan     *Pan
	markers []Marker
	onClick ClickHandler
}

func New() *View {
	return &View{}
}

// Initialize creates the view at center. Re-initialising clears markers.
func (v *View) Initialize(center model.Coords, zoom int) {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	v.ready = true
	v.center = center
	v.zoom = zoom
	v.pan = nil
	v.markers = nil
}

func (v *View) PlaceMarker(w model.Workout) error {
	if !v.ready {
		return ErrNotInitialized
	}
	v.markers = append(v.markers, Marker{
		WorkoutID:    w.ID,
		Coords:       w.Coords,
		Content:      w.Icon() + " " + w.Description,
		ClassName:    w.PopupClass(),
		AutoClose:    false,
		CloseOnClick: false,
	})
	return nil
}

func (v *View) Recenter(coords model.Coords, zoom int, panDuration time.Duration) error {
	if !v.ready {
		return ErrNotInitialized
	}
	if zoom <= 0 {
		zoom = v.zoom
	}
	v.center = coords
	v.zoom = zoom
	v.pan = &Pan{Animate: true, Duration: panDuration.Seconds()}
	return nil
}

func (v *View) OnMapClick(handler ClickHandler) {
	v.onClick = handler
}

// Click dispatches a map click to the registered handler.
func (v *View) Click(coords model.Coords) error {
	if !v.ready {
		return ErrNotInitialized
	}
	if v.onClick != nil {
		v.onClick(coords)
	}
	return nil
}

func (v *View) State() State {
	state := State{
		Ready:   v.ready,
		Markers: make([]Marker, len(v.markers)),
	}
	copy(state.Markers, v.markers)
	if !v.ready {
		return state
	}
	center := v.center
	state.Center = &center
	state.Zoom = v.zoom
	if v.pan != nil {
		pan := *v.pan
		state.Pan = &pan
	}
	return state
}
