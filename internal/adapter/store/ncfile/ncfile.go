// Package ncfile reads forecast grids from NetCDF files and OPeNDAP endpoints.
package ncfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"
	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
)

// Config controls how variables are located inside a dataset.
type Config struct {
	// Candidate variable names per coordinate axis, tried in order.
	LatNames  []string
	LonNames  []string
	TimeNames []string

	// Level is the index used on the level dimension of 4-D variables.
	Level int
}

// DefaultConfig returns the names used by NOMADS and CF-style files.
func DefaultConfig() Config {
	return Config{
		LatNames:  []string{"lat", "latitude", "y"},
		LonNames:  []string{"lon", "longitude", "x"},
		TimeNames: []string{"time", "t"},
	}
}

// Dataset is an open NetCDF handle. The netCDF-C library is not safe for
// concurrent use, so every read takes the dataset lock.
type Dataset struct {
	location string
	cfg      Config

	mu     sync.Mutex
	nc     netcdf.Dataset
	closed bool
	axes   map[string][]float64
}

var _ store.Dataset = (*Dataset)(nil)

// Open opens a file path or OPeNDAP URL read-only.
func Open(location string, cfg Config) (*Dataset, error) {
	if !strings.Contains(location, "://") {
		if _, err := os.Stat(location); err != nil {
			return nil, fmt.Errorf("failed to open dataset %s: %w", location, err)
		}
	}
	nc, err := netcdf.OpenFile(location, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", location, err)
	}
	return &Dataset{
		location: location,
		cfg:      cfg,
		nc:       nc,
		axes:     make(map[string][]float64),
	}, nil
}

// Opener returns a store.Opener that opens datasets with cfg.
func Opener(cfg Config) store.Opener {
	return store.OpenerFunc(func(ctx context.Context, location string) (store.Dataset, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Open(location, cfg)
	})
}

// Location returns the path or URL the dataset was opened from.
func (d *Dataset) Location() string {
	return d.location
}

// Axis reads a coordinate axis. Results are cached for the life of the handle.
func (d *Dataset) Axis(name string) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}

	if cached, ok := d.axes[name]; ok {
		return append([]float64(nil), cached...), nil
	}

	names := d.axisNames(name)
	for _, n := range names {
		v, err := d.nc.Var(n)
		if err != nil {
			continue
		}
		data, err := readFloat64Var(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s axis: %w", name, err)
		}
		d.axes[name] = data
		return append([]float64(nil), data...), nil
	}
	return nil, &domain.VariableNotFoundError{Variable: name, Step: -1}
}

func (d *Dataset) axisNames(name string) []string {
	var names []string
	switch name {
	case store.AxisLat:
		names = d.cfg.LatNames
	case store.AxisLon:
		names = d.cfg.LonNames
	case store.AxisTime:
		names = d.cfg.TimeNames
	}
	if len(names) == 0 {
		return []string{name}
	}
	return names
}

// resolveVar maps an axis alias to the variable actually present.
func (d *Dataset) resolveVar(name string) (netcdf.Var, error) {
	for _, n := range d.axisNames(name) {
		if v, err := d.nc.Var(n); err == nil {
			return v, nil
		}
	}
	return d.nc.Var(name)
}

// Attr reads a text attribute. Axis aliases are accepted for the variable.
func (d *Dataset) Attr(variable, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errClosed
	}

	v, err := d.resolveVar(variable)
	if err != nil {
		return "", &domain.VariableNotFoundError{Variable: variable, Step: -1}
	}
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", fmt.Errorf("%s:%s: %w", variable, name, store.ErrAttrNotFound)
	}
	t, err := a.Type()
	if err != nil {
		return "", fmt.Errorf("failed to get attribute type: %w", err)
	}
	if t != netcdf.CHAR {
		return "", fmt.Errorf("attribute %s:%s is %v, not text", variable, name, t)
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", fmt.Errorf("failed to read attribute %s:%s: %w", variable, name, err)
	}
	// Trailing NULs are common in files written by C tools.
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}

// Shape returns the dimension lengths of a variable.
func (d *Dataset) Shape(variable string) ([]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}

	v, err := d.nc.Var(variable)
	if err != nil {
		return nil, &domain.VariableNotFoundError{Variable: variable, Step: -1}
	}
	return varShape(v)
}

// ReadGrid reads one step of a variable over the given index window.
// Supported layouts are [lat, lon], [time, lat, lon] and
// [time, level, lat, lon]; 2-D variables ignore the step.
func (d *Dataset) ReadGrid(variable string, step int, lat, lon domain.IndexRange) (*mat.Dense, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}

	v, err := d.nc.Var(variable)
	if err != nil {
		return nil, &domain.VariableNotFoundError{Variable: variable, Step: step}
	}
	shape, err := varShape(v)
	if err != nil {
		return nil, err
	}

	var start, count []int
	switch len(shape) {
	case 2:
		start = []int{lat.Start, lon.Start}
		count = []int{lat.Len(), lon.Len()}
	case 3:
		start = []int{step, lat.Start, lon.Start}
		count = []int{1, lat.Len(), lon.Len()}
	case 4:
		if d.cfg.Level < 0 || d.cfg.Level >= shape[1] {
			return nil, fmt.Errorf("level %d outside %d levels of %s", d.cfg.Level, shape[1], variable)
		}
		start = []int{step, d.cfg.Level, lat.Start, lon.Start}
		count = []int{1, 1, lat.Len(), lon.Len()}
	default:
		return nil, fmt.Errorf("variable %s has unsupported rank %d", variable, len(shape))
	}
	if len(shape) > 2 && (step < 0 || step >= shape[0]) {
		return nil, &domain.StepOutOfRangeError{Step: step, Total: shape[0]}
	}
	n := len(shape)
	if lat.Len() <= 0 || lat.Start < 0 || lat.End > shape[n-2] {
		return nil, fmt.Errorf("lat range [%d:%d) outside %d rows of %s", lat.Start, lat.End, shape[n-2], variable)
	}
	if lon.Len() <= 0 || lon.Start < 0 || lon.End > shape[n-1] {
		return nil, fmt.Errorf("lon range [%d:%d) outside %d columns of %s", lon.Start, lon.End, shape[n-1], variable)
	}

	flat, err := readHyperslab(v, start, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at step %d: %w", variable, step, err)
	}
	applyPacking(v, flat)
	return mat.NewDense(lat.Len(), lon.Len(), flat), nil
}

// Close releases the underlying handle. Only the first call has effect.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	d.closed = true
	d.axes = nil
	if err := d.nc.Close(); err != nil {
		return fmt.Errorf("failed to close dataset %s: %w", d.location, err)
	}
	return nil
}

var errClosed = errors.New("dataset is closed")

func varShape(v netcdf.Var) ([]int, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	shape := make([]int, len(dims))
	for i, dim := range dims {
		n, err := dim.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get dim%d length: %w", i, err)
		}
		//nolint:gosec // G115: dimension lengths fit in int.
		shape[i] = int(n)
	}
	return shape, nil
}

// readFloat64Var reads a whole 1-D variable as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	shape, err := varShape(v)
	if err != nil {
		return nil, err
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(shape))
	}
	return readHyperslab(v, []int{0}, shape)
}

// readHyperslab reads a start/count block of any numeric variable as float64.
func readHyperslab(v netcdf.Var, start, count []int) ([]float64, error) {
	varType, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable type: %w", err)
	}

	total := 1
	ustart := make([]uint64, len(start))
	ucount := make([]uint64, len(count))
	for i := range start {
		total *= count[i]
		//nolint:gosec // G115: indices validated by the caller.
		ustart[i], ucount[i] = uint64(start[i]), uint64(count[i])
	}

	out := make([]float64, total)
	switch varType {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64Slice(out, ustart, ucount); err != nil {
			return nil, fmt.Errorf("failed to read float64 subset: %w", err)
		}
	case netcdf.FLOAT:
		buf := make([]float32, total)
		if err := v.ReadFloat32Slice(buf, ustart, ucount); err != nil {
			return nil, fmt.Errorf("failed to read float32 subset: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	case netcdf.INT:
		buf := make([]int32, total)
		if err := v.ReadInt32Slice(buf, ustart, ucount); err != nil {
			return nil, fmt.Errorf("failed to read int32 subset: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	case netcdf.SHORT:
		buf := make([]int16, total)
		if err := v.ReadInt16Slice(buf, ustart, ucount); err != nil {
			return nil, fmt.Errorf("failed to read int16 subset: %w", err)
		}
		for i, val := range buf {
			out[i] = float64(val)
		}
	case netcdf.BYTE, netcdf.UBYTE, netcdf.CHAR, netcdf.USHORT, netcdf.UINT, netcdf.INT64, netcdf.UINT64, netcdf.STRING:
		return nil, fmt.Errorf("unsupported data type: %v (expected DOUBLE, FLOAT, INT, or SHORT)", varType)
	default:
		return nil, fmt.Errorf("unsupported data type: %v", varType)
	}
	return out, nil
}

// applyPacking applies scale_factor and add_offset to valid cells. Cells
// holding _FillValue or missing_value read as 0.
func applyPacking(v netcdf.Var, data []float64) {
	var sentinels []float64
	if fill, ok := numericAttr(v, "_FillValue"); ok {
		sentinels = append(sentinels, fill)
	}
	if missing, ok := numericAttr(v, "missing_value"); ok {
		sentinels = append(sentinels, missing)
	}
	scale, hasScale := numericAttr(v, "scale_factor")
	offset, _ := numericAttr(v, "add_offset")
	if !hasScale || scale == 0 {
		scale = 1
	}
	for i, val := range data {
		if isSentinel(val, sentinels) {
			data[i] = 0
			continue
		}
		data[i] = val*scale + offset
	}
}

func isSentinel(val float64, sentinels []float64) bool {
	for _, s := range sentinels {
		if val == s {
			return true
		}
	}
	return false
}

// numericAttr reads the first value of a numeric attribute.
func numericAttr(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	if n, err := a.Len(); err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, 1)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, 1)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, 1)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, 1)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}
