// Package memory provides an in-memory Dataset, used for fixtures and tests.
package memory

import (
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
)

// Dataset holds axes and (step, lat, lon) variable cubes in memory.
type Dataset struct {
	Lats      []float64
	Lons      []float64
	Times     []float64
	TimeUnits string
	Calendar  string
	// Vars maps a variable name to values indexed [step][lat][lon].
	Vars map[string][][][]float64

	closed atomic.Int32
}

var _ store.Dataset = (*Dataset)(nil)

// Constant builds a cube of steps x rows x cols filled with v.
func Constant(steps, rows, cols int, v float64) [][][]float64 {
	return Generate(steps, rows, cols, func(int, int, int) float64 { return v })
}

// Generate builds a cube of steps x rows x cols using f(step, row, col).
func Generate(steps, rows, cols int, f func(step, row, col int) float64) [][][]float64 {
	cube := make([][][]float64, steps)
	for s := range cube {
		cube[s] = make([][]float64, rows)
		for i := range cube[s] {
			cube[s][i] = make([]float64, cols)
			for j := range cube[s][i] {
				cube[s][i][j] = f(s, i, j)
			}
		}
	}
	return cube
}

// Axis returns a copy of the named axis.
func (d *Dataset) Axis(name string) ([]float64, error) {
	var axis []float64
	switch name {
	case store.AxisLat:
		axis = d.Lats
	case store.AxisLon:
		axis = d.Lons
	case store.AxisTime:
		axis = d.Times
	default:
		return nil, &domain.VariableNotFoundError{Variable: name, Step: -1}
	}
	if axis == nil {
		return nil, &domain.VariableNotFoundError{Variable: name, Step: -1}
	}
	return append([]float64(nil), axis...), nil
}

// Attr supports the "units" and "calendar" attributes of the time axis.
func (d *Dataset) Attr(variable, name string) (string, error) {
	if variable != store.AxisTime {
		return "", fmt.Errorf("%s:%s: %w", variable, name, store.ErrAttrNotFound)
	}
	switch {
	case name == "units" && d.TimeUnits != "":
		return d.TimeUnits, nil
	case name == "calendar" && d.Calendar != "":
		return d.Calendar, nil
	}
	return "", fmt.Errorf("%s:%s: %w", variable, name, store.ErrAttrNotFound)
}

// Shape returns [steps, rows, cols] for a variable.
func (d *Dataset) Shape(variable string) ([]int, error) {
	cube, ok := d.Vars[variable]
	if !ok {
		return nil, &domain.VariableNotFoundError{Variable: variable, Step: -1}
	}
	if len(cube) == 0 {
		return []int{0, 0, 0}, nil
	}
	rows := len(cube[0])
	cols := 0
	if rows > 0 {
		cols = len(cube[0][0])
	}
	return []int{len(cube), rows, cols}, nil
}

// ReadGrid copies the requested window of a variable at one step.
func (d *Dataset) ReadGrid(variable string, step int, lat, lon domain.IndexRange) (*mat.Dense, error) {
	cube, ok := d.Vars[variable]
	if !ok {
		return nil, &domain.VariableNotFoundError{Variable: variable, Step: step}
	}
	if step < 0 || step >= len(cube) {
		return nil, &domain.StepOutOfRangeError{Step: step, Total: len(cube)}
	}
	plane := cube[step]
	if lat.Start < 0 || lat.End > len(plane) || lat.Len() <= 0 {
		return nil, fmt.Errorf("lat range [%d:%d) outside %d rows", lat.Start, lat.End, len(plane))
	}
	for i := lat.Start; i < lat.End; i++ {
		if n := len(plane[i]); lon.Start < 0 || lon.End > n || lon.Len() <= 0 {
			return nil, fmt.Errorf("lon range [%d:%d) outside %d columns", lon.Start, lon.End, n)
		}
	}
	out := mat.NewDense(lat.Len(), lon.Len(), nil)
	for i := lat.Start; i < lat.End; i++ {
		out.SetRow(i-lat.Start, plane[i][lon.Start:lon.End])
	}
	return out, nil
}

// Close marks the dataset closed. Closing twice is an error.
func (d *Dataset) Close() error {
	if d.closed.Add(1) > 1 {
		return fmt.Errorf("dataset already closed")
	}
	return nil
}

// Closed reports how many times Close was called.
func (d *Dataset) Closed() int {
	return int(d.closed.Load())
}
