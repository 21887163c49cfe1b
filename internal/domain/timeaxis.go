package domain

import (
	"fmt"
	"iter"
	"math"
	"time"
)

// LabelLayout formats a valid time as "6 PM CST, Tuesday, December 31, 2019".
const LabelLayout = "3 PM MST, Monday, January 2, 2006"

// ValidTime is the real-world time represented by one forecast step.
type ValidTime struct {
	Step  int
	UTC   time.Time
	Local time.Time
	Label string
}

// TimeAxisOptions tunes ResolveTimeAxis.
type TimeAxisOptions struct {
	Calendar string // Calendar attribute of the time axis ("" means standard).
	Layout   string // Label layout; defaults to LabelLayout.
}

// TimeAxis is the ordered sequence of valid times for a dataset. Values are
// decoded on demand, so iterating twice yields the same sequence.
type TimeAxis struct {
	raw    []float64
	units  TimeUnits
	zone   *time.Location
	layout string
}

// ResolveTimeAxis decodes a numeric time axis into valid times in zone.
// The order of raw is kept as is.
func ResolveTimeAxis(raw []float64, units string, zone *time.Location, opts TimeAxisOptions) (*TimeAxis, error) {
	u, err := ParseTimeUnits(units, opts.Calendar)
	if err != nil {
		return nil, err
	}
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &TimeDecodeError{Units: units, Reason: fmt.Sprintf("non-finite value at step %d", i)}
		}
	}
	if zone == nil {
		zone = time.UTC
	}
	layout := opts.Layout
	if layout == "" {
		layout = LabelLayout
	}
	return &TimeAxis{
		raw:    append([]float64(nil), raw...),
		units:  u,
		zone:   zone,
		layout: layout,
	}, nil
}

// Len returns the number of forecast steps.
func (a *TimeAxis) Len() int {
	return len(a.raw)
}

// Units returns the decoded units descriptor.
func (a *TimeAxis) Units() TimeUnits {
	return a.units
}

// Zone returns the target time zone.
func (a *TimeAxis) Zone() *time.Location {
	return a.zone
}

// At returns the valid time for a step.
func (a *TimeAxis) At(step int) (ValidTime, error) {
	if step < 0 || step >= len(a.raw) {
		return ValidTime{}, &StepOutOfRangeError{Step: step, Total: len(a.raw)}
	}
	return a.decode(step), nil
}

// All yields every step in dataset order.
func (a *TimeAxis) All() iter.Seq[ValidTime] {
	return func(yield func(ValidTime) bool) {
		for i := range a.raw {
			if !yield(a.decode(i)) {
				return
			}
		}
	}
}

// Labels returns the formatted label of every step.
func (a *TimeAxis) Labels() []string {
	out := make([]string, 0, len(a.raw))
	for vt := range a.All() {
		out = append(out, vt.Label)
	}
	return out
}

func (a *TimeAxis) decode(step int) ValidTime {
	utc := a.units.Decode(a.raw[step]).UTC()
	local := utc.In(a.zone)
	return ValidTime{
		Step:  step,
		UTC:   utc,
		Local: local,
		Label: local.Format(a.layout),
	}
}
