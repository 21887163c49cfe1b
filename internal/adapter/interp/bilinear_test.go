package interp

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestSampler_CenterPoint checks the mean of four corners at a cell centre.
func TestSampler_CenterPoint(t *testing.T) {
	s, err := NewSampler([]float64{0, 2}, []float64{0, 2}, mat.NewDense(2, 2, []float64{
		1, 3,
		5, 7,
	}))
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	got, err := s.At(1, 1)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if math.Abs(got-4.0) > 1e-9 {
		t.Errorf("center: expected 4.0, got %.10f", got)
	}
}

// TestSampler_GridPointsAreExact checks that sampling on grid points returns stored values.
func TestSampler_GridPointsAreExact(t *testing.T) {
	lats := []float64{30, 35, 40}
	lons := []float64{260, 265, 270, 275}
	values := mat.NewDense(3, 4, nil)
	for i := range lats {
		for j := range lons {
			values.Set(i, j, float64(10*i+j))
		}
	}
	s, err := NewSampler(lats, lons, values)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	for i, lat := range lats {
		for j, lon := range lons {
			got, err := s.At(lat, lon)
			if err != nil {
				t.Fatalf("At(%v, %v): %v", lat, lon, err)
			}
			if math.Abs(got-values.At(i, j)) > 1e-9 {
				t.Errorf("At(%v, %v): expected %v, got %v", lat, lon, values.At(i, j), got)
			}
		}
	}
}

// TestSampler_LinearField checks a plane is reproduced exactly.
func TestSampler_LinearField(t *testing.T) {
	lats := []float64{50, 45, 40} // descending, as many GRIB-derived grids are
	lons := []float64{-100, -95, -90}
	values := mat.NewDense(3, 3, nil)
	for i, lat := range lats {
		for j, lon := range lons {
			values.Set(i, j, 2*lat+0.5*lon)
		}
	}
	s, err := NewSampler(lats, lons, values)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	for _, p := range [][2]float64{{47.5, -97.5}, {41.2, -91.1}, {49.9, -99.9}} {
		got, err := s.At(p[0], p[1])
		if err != nil {
			t.Fatalf("At(%v): %v", p, err)
		}
		want := 2*p[0] + 0.5*p[1]
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("At(%v): expected %v, got %v", p, want, got)
		}
	}
}

// TestSampler_OutOfBounds checks points outside the grid fail.
func TestSampler_OutOfBounds(t *testing.T) {
	s, err := NewSampler([]float64{0, 1}, []float64{0, 1}, mat.NewDense(2, 2, nil))
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	for _, p := range [][2]float64{{-1, 0.5}, {2, 0.5}, {0.5, -0.1}, {0.5, 1.1}, {math.NaN(), 0}} {
		if _, err := s.At(p[0], p[1]); err == nil {
			t.Errorf("At(%v): expected error", p)
		}
	}
}

// TestNewSampler_Invalid checks grid validation.
func TestNewSampler_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		lats   []float64
		lons   []float64
		values *mat.Dense
	}{
		{"too few lats", []float64{0}, []float64{0, 1}, mat.NewDense(1, 2, nil)},
		{"shape mismatch", []float64{0, 1}, []float64{0, 1}, mat.NewDense(2, 3, nil)},
		{"non-monotonic lats", []float64{0, 1, 0.5}, []float64{0, 1}, mat.NewDense(3, 2, nil)},
		{"repeated lons", []float64{0, 1}, []float64{0, 0}, mat.NewDense(2, 2, nil)},
	}
	for _, tt := range tests {
		if _, err := NewSampler(tt.lats, tt.lons, tt.values); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

// TestWindow checks the bracketing index range.
func TestWindow(t *testing.T) {
	axis := []float64{30, 35, 40, 45, 50}
	tests := []struct {
		x          float64
		start, end int
	}{
		{30, 0, 2},
		{37, 1, 3},
		{40, 1, 3},
		{50, 3, 5},
	}
	for _, tt := range tests {
		w, err := Window(axis, tt.x)
		if err != nil {
			t.Fatalf("Window(%v): %v", tt.x, err)
		}
		if w.Start != tt.start || w.End != tt.end {
			t.Errorf("Window(%v): expected [%d:%d), got [%d:%d)", tt.x, tt.start, tt.end, w.Start, w.End)
		}
	}
	if _, err := Window(axis, 51); err == nil {
		t.Error("expected error outside axis")
	}
}
