package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
)

func newDataset() *Dataset {
	return &Dataset{
		Lats:      []float64{10, 20, 30},
		Lons:      []float64{100, 110, 120, 130},
		Times:     []float64{0, 6},
		TimeUnits: "hours since 2021-06-01 00:00",
		Vars: map[string][][][]float64{
			"cell": Generate(2, 3, 4, func(s, i, j int) float64 { return float64(100*s + 10*i + j) }),
		},
	}
}

func TestReadGridWindow(t *testing.T) {
	ds := newDataset()
	grid, err := ds.ReadGrid("cell", 1, domain.IndexRange{Start: 1, End: 3}, domain.IndexRange{Start: 2, End: 4})
	require.NoError(t, err)

	r, c := grid.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 112.0, grid.At(0, 0))
	assert.Equal(t, 123.0, grid.At(1, 1))

	// Reads are copies.
	grid.Set(0, 0, -1)
	assert.Equal(t, 112.0, ds.Vars["cell"][1][1][2])
}

func TestReadGridErrors(t *testing.T) {
	ds := newDataset()
	all := domain.IndexRange{Start: 0, End: 3}

	_, err := ds.ReadGrid("tmp2m", 0, all, all)
	var missing *domain.VariableNotFoundError
	assert.True(t, errors.As(err, &missing))

	_, err = ds.ReadGrid("cell", 2, all, all)
	var badStep *domain.StepOutOfRangeError
	assert.True(t, errors.As(err, &badStep))

	_, err = ds.ReadGrid("cell", 0, domain.IndexRange{Start: 0, End: 4}, all)
	assert.Error(t, err)
	_, err = ds.ReadGrid("cell", 0, all, domain.IndexRange{Start: 3, End: 5})
	assert.Error(t, err)
}

func TestReadGridDegenerateLonRange(t *testing.T) {
	ds := newDataset()
	all := domain.IndexRange{Start: 0, End: 3}

	for _, lon := range []domain.IndexRange{
		{Start: 2, End: 2},
		{Start: 3, End: 1},
		{Start: -1, End: 2},
	} {
		assert.NotPanics(t, func() {
			grid, err := ds.ReadGrid("cell", 0, all, lon)
			assert.Error(t, err, "lon %+v", lon)
			assert.Nil(t, grid)
		})
	}
}

func TestAxisAttrShape(t *testing.T) {
	ds := newDataset()

	lons, err := ds.Axis(store.AxisLon)
	require.NoError(t, err)
	lons[0] = 0
	assert.Equal(t, 100.0, ds.Lons[0])

	_, err = ds.Axis("lev")
	assert.Error(t, err)

	units, err := ds.Attr(store.AxisTime, "units")
	require.NoError(t, err)
	assert.Equal(t, "hours since 2021-06-01 00:00", units)
	_, err = ds.Attr(store.AxisTime, "calendar")
	assert.ErrorIs(t, err, store.ErrAttrNotFound)

	shape, err := ds.Shape("cell")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, shape)
}

func TestCloseTwice(t *testing.T) {
	ds := newDataset()
	require.NoError(t, ds.Close())
	assert.Error(t, ds.Close())
	assert.Equal(t, 2, ds.Closed())
}
