package store

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/domain"
)

// Standard coordinate axis names.
const (
	AxisLat  = "lat"
	AxisLon  = "lon"
	AxisTime = "time"
)

// ErrAttrNotFound is returned when a variable has no attribute with the requested name.
var ErrAttrNotFound = errors.New("attribute not found")

// Dataset is an opened gridded forecast dataset. It is read-only after open
// and may be shared by several readers. The caller closes it exactly once.
type Dataset interface {
	// Axis reads a 1-D coordinate axis ("lat", "lon" or "time").
	Axis(name string) ([]float64, error)

	// Attr reads a text attribute of a variable, e.g. the units of "time".
	Attr(variable, name string) (string, error)

	// Shape returns the dimension lengths of a variable.
	Shape(variable string) ([]int, error)

	// ReadGrid reads the spatial subgrid of a variable at one forecast step.
	// Rows follow the latitude axis and columns the longitude axis.
	ReadGrid(variable string, step int, lat, lon domain.IndexRange) (*mat.Dense, error)

	// Close releases the dataset.
	Close() error
}

// Opener opens a dataset from a path or URL.
type Opener interface {
	Open(ctx context.Context, location string) (Dataset, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, location string) (Dataset, error)

// Open calls f(ctx, location).
func (f OpenerFunc) Open(ctx context.Context, location string) (Dataset, error) {
	return f(ctx, location)
}
