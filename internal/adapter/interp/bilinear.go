// Package interp samples gridded fields between grid points.
package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/domain"
)

// Sampler interpolates a [lat, lon] grid. Values.At(i, j) is the value at
// (Lats[i], Lons[j]). Axes may ascend or descend but must be strictly monotonic.
type Sampler struct {
	Lats   []float64
	Lons   []float64
	Values *mat.Dense
}

// NewSampler validates the grid and returns a Sampler.
func NewSampler(lats, lons []float64, values *mat.Dense) (*Sampler, error) {
	if len(lats) < 2 || len(lons) < 2 {
		return nil, fmt.Errorf("grid must have at least 2x2 points, got %dx%d", len(lats), len(lons))
	}
	if r, c := values.Dims(); r != len(lats) || c != len(lons) {
		return nil, fmt.Errorf("values are %dx%d, axes are %dx%d", r, c, len(lats), len(lons))
	}
	if !monotonic(lats) {
		return nil, fmt.Errorf("latitudes must be strictly monotonic")
	}
	if !monotonic(lons) {
		return nil, fmt.Errorf("longitudes must be strictly monotonic")
	}
	return &Sampler{Lats: lats, Lons: lons, Values: values}, nil
}

// At returns the bilinear value at (lat, lon):
//
//	f ≈ (1-t)(1-u)f00 + t(1-u)f01 + (1-t)u f10 + tu f11
//
// with t the fractional column position and u the fractional row position.
func (s *Sampler) At(lat, lon float64) (float64, error) {
	i, u, err := bracket(s.Lats, lat)
	if err != nil {
		return 0, fmt.Errorf("latitude: %w", err)
	}
	j, t, err := bracket(s.Lons, lon)
	if err != nil {
		return 0, fmt.Errorf("longitude: %w", err)
	}
	v := s.Values
	return (1-t)*(1-u)*v.At(i, j) +
		t*(1-u)*v.At(i, j+1) +
		(1-t)*u*v.At(i+1, j) +
		t*u*v.At(i+1, j+1), nil
}

// bracket finds k with x between axis[k] and axis[k+1] and the fraction
// of the way from axis[k] to axis[k+1].
func bracket(axis []float64, x float64) (int, float64, error) {
	const epsilon = 1e-9
	lo, hi := axis[0], axis[len(axis)-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	if math.IsNaN(x) || x < lo-epsilon || x > hi+epsilon {
		return 0, 0, fmt.Errorf("%.6f is outside grid range [%.6f, %.6f]", x, lo, hi)
	}
	for k := 0; k < len(axis)-1; k++ {
		a, b := axis[k], axis[k+1]
		if (x-a)*(x-b) <= epsilon*epsilon || k == len(axis)-2 {
			f := (x - a) / (b - a)
			return k, math.Max(0, math.Min(1, f)), nil
		}
	}
	return 0, 0, fmt.Errorf("%.6f not bracketed", x)
}

func monotonic(axis []float64) bool {
	up := axis[1] > axis[0]
	for k := 1; k < len(axis); k++ {
		if up && axis[k] <= axis[k-1] {
			return false
		}
		if !up && axis[k] >= axis[k-1] {
			return false
		}
	}
	return true
}

// Window returns the smallest index range of at least two points that
// brackets x on axis, for reading just enough of a dataset to sample.
func Window(axis []float64, x float64) (domain.IndexRange, error) {
	if len(axis) < 2 {
		return domain.IndexRange{}, fmt.Errorf("axis must have at least 2 points")
	}
	k, _, err := bracket(axis, x)
	if err != nil {
		return domain.IndexRange{}, err
	}
	return domain.IndexRange{Start: k, End: k + 2}, nil
}
