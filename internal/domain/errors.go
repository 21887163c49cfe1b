package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAxis is returned when a coordinate axis has no elements.
	ErrEmptyAxis = errors.New("coordinate axis is empty")

	// ErrLonConvention is returned when a bounding box longitude convention
	// does not match the dataset's longitude axis.
	ErrLonConvention = errors.New("longitude convention mismatch")

	// ErrStepReplayed is returned when an accumulation step is applied twice.
	ErrStepReplayed = errors.New("forecast step already applied")

	// ErrInvalidRun is returned when a run date or cycle is malformed.
	ErrInvalidRun = errors.New("invalid model run")
)

// UnknownModelError is returned when a model identifier is not supported.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Model)
}

// DegenerateDomainError is returned when a bounding box collapses to fewer
// than two grid cells along an axis, or when the computed indices are reversed.
type DegenerateDomainError struct {
	Axis  string // "lat" or "lon".
	Lower int
	Upper int
	Low   float64 // Requested lower/left edge.
	High  float64 // Requested upper/right edge.
}

func (e *DegenerateDomainError) Error() string {
	return fmt.Sprintf("degenerate %s domain: index range [%d:%d) for bounds %.4f..%.4f",
		e.Axis, e.Lower, e.Upper, e.Low, e.High)
}

// TimeDecodeError is returned when a time units descriptor cannot be parsed.
type TimeDecodeError struct {
	Units  string
	Reason string
}

func (e *TimeDecodeError) Error() string {
	return fmt.Sprintf("cannot decode time units %q: %s", e.Units, e.Reason)
}

// VariableNotFoundError is returned when a named variable is missing from a
// dataset. Step is -1 when the lookup was not tied to a forecast step.
type VariableNotFoundError struct {
	Variable string
	Step     int
}

func (e *VariableNotFoundError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("variable %q not found", e.Variable)
	}
	return fmt.Sprintf("variable %q not found at step %d", e.Variable, e.Step)
}

// StepOutOfRangeError is returned when a selected forecast step does not
// exist in the dataset.
type StepOutOfRangeError struct {
	Step  int
	Total int
}

func (e *StepOutOfRangeError) Error() string {
	return fmt.Sprintf("forecast step %d out of range [0, %d)", e.Step, e.Total)
}
