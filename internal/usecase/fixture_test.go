package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.ngs.io/forecast-frames/internal/adapter/store/memory"
	"go.ngs.io/forecast-frames/internal/domain"
)

const fixtureSteps = 5

var fixtureBox = domain.BoundingBox{LowerLat: 36, UpperLat: 44, LeftLon: -96, RightLon: -84}

// newFixture builds a 5x5 grid with hourly steps. The box above selects the
// 2x2 window at rows 1-2 and columns 1-2.
func newFixture() *memory.Dataset {
	return &memory.Dataset{
		Lats:      []float64{30, 35, 40, 45, 50},
		Lons:      []float64{-100, -95, -90, -85, -80},
		Times:     []float64{0, 1, 2, 3, 4},
		TimeUnits: "hours since 2020-01-01T00:00:00Z",
		Vars: map[string][][][]float64{
			"ones": memory.Constant(fixtureSteps, 5, 5, 1),
			"step": memory.Generate(fixtureSteps, 5, 5, func(s, _, _ int) float64 { return float64(s) }),
			"cell": memory.Generate(fixtureSteps, 5, 5, func(s, i, j int) float64 { return float64(100*s + 10*i + j) }),
			// csnow is 1 in the left column of the window only.
			"csnow":  memory.Generate(fixtureSteps, 5, 5, func(_, _, j int) float64 { return boolFloat(j <= 1) }),
			"nosnow": memory.Constant(fixtureSteps, 5, 5, 0),
		},
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func fixtureDomain(t *testing.T, ds *memory.Dataset) *domain.GeoDomain {
	t.Helper()
	dom, err := LoadDomain(ds, fixtureBox, domain.DomainOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, dom.Rows())
	require.Equal(t, 2, dom.Cols())
	return dom
}
