package domain

import (
	"fmt"
	"math"
)

// LonConvention identifies how longitudes are expressed on an axis.
type LonConvention int

const (
	// LonSigned expresses longitudes in the -180..180 range.
	LonSigned LonConvention = iota
	// Lon360 expresses longitudes in the 0..360 range (global models).
	Lon360
)

func (c LonConvention) String() string {
	switch c {
	case Lon360:
		return "0..360"
	default:
		return "-180..180"
	}
}

// DetectLonConvention infers the convention of a longitude axis.
// Axes containing values above 180 are treated as 0..360.
func DetectLonConvention(lons []float64) LonConvention {
	for _, v := range lons {
		if v > 180 {
			return Lon360
		}
	}
	return LonSigned
}

// ToConvention converts a longitude into the given convention.
func ToConvention(lon float64, c LonConvention) float64 {
	switch c {
	case Lon360:
		lon = math.Mod(lon, 360.0)
		if lon < 0 {
			lon += 360.0
		}
		return lon
	default:
		lon = math.Mod(lon+180.0, 360.0)
		if lon < 0 {
			lon += 360.0
		}
		return lon - 180.0
	}
}

// BoundingBox is a rectangular lat/lon region in degrees.
type BoundingBox struct {
	LowerLat   float64
	UpperLat   float64
	LeftLon    float64
	RightLon   float64
	Convention LonConvention
}

// Validate checks latitude ordering and that longitudes fit the declared convention.
func (b BoundingBox) Validate() error {
	if b.LowerLat < -90 || b.UpperLat > 90 {
		return fmt.Errorf("latitudes must be between -90 and 90 (got %.4f..%.4f)", b.LowerLat, b.UpperLat)
	}
	if b.LowerLat >= b.UpperLat {
		return fmt.Errorf("lower latitude %.4f must be below upper latitude %.4f", b.LowerLat, b.UpperLat)
	}
	lo, hi := -180.0, 180.0
	if b.Convention == Lon360 {
		lo, hi = 0, 360
	}
	for _, lon := range []float64{b.LeftLon, b.RightLon} {
		if lon < lo || lon > hi {
			return fmt.Errorf("longitude %.4f outside %s convention", lon, b.Convention)
		}
	}
	return nil
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.LowerLat + b.UpperLat) / 2, (b.LeftLon + b.RightLon) / 2
}

// InConvention returns a copy of the box with longitudes converted to c.
func (b BoundingBox) InConvention(c LonConvention) BoundingBox {
	if b.Convention == c {
		return b
	}
	b.LeftLon = ToConvention(b.LeftLon, c)
	b.RightLon = ToConvention(b.RightLon, c)
	b.Convention = c
	return b
}

// MapScale converts degree spans into projected map extents (metres).
// The constants are empirical and tied to a projection resolution.
type MapScale struct {
	W float64 // Metres per degree of longitude.
	H float64 // Metres per degree of latitude.
}

var (
	// ScaleLCCIntermediate is used with intermediate-resolution Lambert maps.
	ScaleLCCIntermediate = MapScale{W: 81541, H: 111092}
	// ScaleLCCLow is used with low-resolution Lambert maps.
	ScaleLCCLow = MapScale{W: 70000, H: 100000}
)

// Dimensions returns the map width and height for a box.
func (s MapScale) Dimensions(b BoundingBox) (width, height float64) {
	return math.Abs(b.LeftLon-b.RightLon) * s.W, math.Abs(b.UpperLat-b.LowerLat) * s.H
}

// IndexRange is a half-open [Start, End) index interval along one axis.
type IndexRange struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r IndexRange) Len() int {
	return r.End - r.Start
}

// BoundsMode controls how the upper index of a domain is treated.
type BoundsMode int

const (
	// BoundsHalfOpen slices [lower:upper) using nearest indices directly, so the
	// grid point nearest the upper/right edge is excluded.
	BoundsHalfOpen BoundsMode = iota
	// BoundsInclusive extends the upper index by one so the nearest grid point
	// to the upper/right edge is included.
	BoundsInclusive
)

// DomainOptions tunes ComputeDomain.
type DomainOptions struct {
	Scale  MapScale
	Bounds BoundsMode
	// Normalize converts the box into the axis longitude convention instead of
	// failing with ErrLonConvention.
	Normalize bool
}

// GeoDomain is the subset of a dataset grid covered by a bounding box.
type GeoDomain struct {
	Box       BoundingBox
	Lat       IndexRange
	Lon       IndexRange
	Lats      []float64
	Lons      []float64
	MapWidth  float64
	MapHeight float64
	CenterLat float64
	CenterLon float64
}

// Rows returns the number of latitude rows in the domain.
func (d *GeoDomain) Rows() int { return d.Lat.Len() }

// Cols returns the number of longitude columns in the domain.
func (d *GeoDomain) Cols() int { return d.Lon.Len() }

// NearestIndex returns the index of the element closest to value.
// Ties resolve to the first occurrence.
func NearestIndex(axis []float64, value float64) (int, error) {
	if len(axis) == 0 {
		return 0, ErrEmptyAxis
	}
	best := 0
	bestDiff := math.Abs(axis[0] - value)
	for i := 1; i < len(axis); i++ {
		if d := math.Abs(axis[i] - value); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, nil
}

// ComputeDomain resolves a bounding box into index ranges against the
// dataset's latitude and longitude axes.
func ComputeDomain(lats, lons []float64, box BoundingBox, opts DomainOptions) (*GeoDomain, error) {
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}
	if len(lats) == 0 {
		return nil, fmt.Errorf("lat axis: %w", ErrEmptyAxis)
	}
	if len(lons) == 0 {
		return nil, fmt.Errorf("lon axis: %w", ErrEmptyAxis)
	}

	// A box only conflicts with the axis when converting it would move an edge.
	axisConv := DetectLonConvention(lons)
	if converted := box.InConvention(axisConv); converted.LeftLon != box.LeftLon || converted.RightLon != box.RightLon {
		if !opts.Normalize {
			return nil, fmt.Errorf("%w: box uses %s, axis uses %s", ErrLonConvention, box.Convention, axisConv)
		}
		box = converted
	}

	lower, _ := NearestIndex(lats, box.LowerLat)
	upper, _ := NearestIndex(lats, box.UpperLat)
	left, _ := NearestIndex(lons, box.LeftLon)
	right, _ := NearestIndex(lons, box.RightLon)

	if opts.Bounds == BoundsInclusive {
		upper = min(upper+1, len(lats))
		right = min(right+1, len(lons))
	}

	if lower >= upper {
		return nil, &DegenerateDomainError{Axis: "lat", Lower: lower, Upper: upper, Low: box.LowerLat, High: box.UpperLat}
	}
	if left >= right {
		return nil, &DegenerateDomainError{Axis: "lon", Lower: left, Upper: right, Low: box.LeftLon, High: box.RightLon}
	}

	scale := opts.Scale
	if scale == (MapScale{}) {
		scale = ScaleLCCIntermediate
	}
	width, height := scale.Dimensions(box)
	cLat, cLon := box.Center()

	return &GeoDomain{
		Box:       box,
		Lat:       IndexRange{Start: lower, End: upper},
		Lon:       IndexRange{Start: left, End: right},
		Lats:      lats[lower:upper],
		Lons:      lons[left:right],
		MapWidth:  width,
		MapHeight: height,
		CenterLat: cLat,
		CenterLon: cLon,
	}, nil
}
