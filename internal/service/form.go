package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"workoutmap/backend/internal/model"
)

type FormState string

const (
	FormHidden  FormState = "hidden"
	FormVisible FormState = "visible"
)

const (
	positiveNumberMessage = "Please Enter A Positive Number!"
	unknownTypeMessage    = "Please Choose Running Or Cycling!"
)

// FormValues are the raw inputs of the entry form, as typed.
type FormValues struct {
	Type      string `json:"type"`
	Distance  string `json:"distance"`
	Duration  string `json:"duration"`
	Cadence   string `json:"cadence"`
	Elevation string `json:"elevation"`
}

type FormView struct {
	State            FormState     `json:"state"`
	Type             model.Kind    `json:"type"`
	PendingClick     *model.Coords `json:"pendingClick,omitempty"`
	CadenceVisible   bool          `json:"cadenceVisible"`
	ElevationVisible bool          `json:"elevationVisible"`
	Focus            string        `json:"focus,omitempty"`
}

// ValidationError rejects a submission. Message is shown to the user as a
// blocking notification.
type ValidationError struct {
	Type    string   `json:"type"`
	Fields  []string `json:"fields"`
	Message string   `json:"-"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

type numericInput struct {
	name  string
	value float64
}

// coerceNumber converts an input value the way the form always has: blank
// is zero, anything unparsable is NaN.
func coerceNumber(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return value
		}
		return math.NaN()
	}
	return value
}

// validate checks that every input is finite and that the inputs named in
// positive are strictly greater than zero.
func validate(kind string, inputs []numericInput, positive ...string) *ValidationError {
	mustBePositive := make(map[string]struct{}, len(positive))
	for _, name := range positive {
		mustBePositive[name] = struct{}{}
	}

	var failed []string
	for _, in := range inputs {
		if math.IsNaN(in.value) || math.IsInf(in.value, 0) {
			failed = append(failed, in.name)
			continue
		}
		if _, ok := mustBePositive[in.name]; ok && in.value <= 0 {
			failed = append(failed, in.name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Type: kind, Fields: failed, Message: positiveNumberMessage}
}
