package mapview

import (
	"errors"
	"fmt"

	"workoutmap/backend/internal/model"
)

var ErrPositionUnavailable = errors.New("position unavailable")

type Position struct {
	Coords model.Coords
}

// Locator resolves the user's position. Exactly one callback fires, or none
// if the lookup never completes.
type Locator interface {
	Locate(onSuccess func(Position), onFailure func(error))
}

// PositionReport is a Locator fed by the outcome the browser already
// obtained: a position, or the reason it could not get one.
type PositionReport struct {
	Coords *model.Coords
	Err    string
}

func (r PositionReport) Locate(onSuccess func(Position), onFailure func(error)) {
	if r.Coords != nil && r.Err == "" {
		if !r.Coords.Valid() {
			onFailure(fmt.Errorf("%w: coordinates out of range", ErrPositionUnavailable))
			return
		}
		onSuccess(Position{Coords: *r.Coords})
		return
	}
	if r.Err != "" {
		onFailure(fmt.Errorf("%w: %s", ErrPositionUnavailable, r.Err))
		return
	}
	onFailure(ErrPositionUnavailable)
}
