package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/observability"
)

func newTestAccumulator() *Accumulator {
	return NewAccumulator(nil, observability.NewMetricsForTesting())
}

func assertGrid(t *testing.T, want float64, grid *mat.Dense) {
	t.Helper()
	r, c := grid.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.InDelta(t, want, grid.At(i, j), 1e-12, "cell (%d,%d)", i, j)
		}
	}
}

func TestAccumulate_SeedsFromFirstStep(t *testing.T) {
	ds := newFixture()
	state, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "ones",
		Steps:   StepList{1, 2, 3},
	})
	require.NoError(t, err)
	assertGrid(t, 3.0, state.Grid)
	assert.Equal(t, []int{1, 2, 3}, state.Steps)
	assert.Equal(t, 3, state.Step)
}

func TestAccumulate_SeedValueIsBaseline(t *testing.T) {
	ds := newFixture()
	state, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "step",
		Steps:   StepRange{Start: 2, End: 5},
	})
	require.NoError(t, err)
	// 2 (seed) + 3 + 4
	assertGrid(t, 9.0, state.Grid)
}

func TestAccumulate_MaskBelowThresholdEverywhereContributesNothing(t *testing.T) {
	ds := newFixture()
	dom := fixtureDomain(t, ds)
	acc := newTestAccumulator()

	var totals []*mat.Dense
	for state, err := range acc.Steps(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  dom,
		Total:   fixtureSteps,
		Primary: "ones",
		Mask:    MaskPolicy{Variable: "nosnow", Threshold: 1},
		Steps:   StepList{0, 1, 2},
	}) {
		require.NoError(t, err)
		totals = append(totals, state.Snapshot().Grid)
	}
	require.Len(t, totals, 3)
	for _, g := range totals {
		assertGrid(t, 1.0, g)
	}
}

func TestAccumulate_MaskZeroesCellsBelowThreshold(t *testing.T) {
	ds := newFixture()
	state, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "ones",
		Mask:    MaskPolicy{Variable: "csnow", Threshold: 1},
		Steps:   StepList{0, 1, 2, 3},
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 4.0, state.Grid.At(i, 0), 1e-12, "snowing column")
		assert.InDelta(t, 1.0, state.Grid.At(i, 1), 1e-12, "seed only")
	}
}

func TestAccumulate_SeedZeroMasksEveryStep(t *testing.T) {
	ds := newFixture()
	state, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset:  ds,
		Domain:   fixtureDomain(t, ds),
		Total:    fixtureSteps,
		Primary:  "ones",
		Mask:     MaskPolicy{Variable: "csnow", Threshold: 1},
		Steps:    StepStride{K: 2},
		SeedZero: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, state.Steps)
	assert.InDelta(t, 3.0, state.Grid.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, state.Grid.At(0, 1), 1e-12)
}

func TestAccumulate_CustomOp(t *testing.T) {
	ds := newFixture()
	state, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "step",
		Steps:   StepList{3, 1, 4, 2},
		Op:      Max,
	})
	require.NoError(t, err)
	assertGrid(t, 4.0, state.Grid)
}

func TestAccumulate_StepOutOfRange(t *testing.T) {
	ds := newFixture()
	_, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "ones",
		Steps:   StepList{1, 5},
	})
	var oor *domain.StepOutOfRangeError
	require.True(t, errors.As(err, &oor), "got %v", err)
	assert.Equal(t, 5, oor.Step)
}

func TestAccumulate_ReplayedStep(t *testing.T) {
	ds := newFixture()
	_, err := newTestAccumulator().Accumulate(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "ones",
		Steps:   StepList{1, 2, 1},
	})
	assert.ErrorIs(t, err, domain.ErrStepReplayed)
}

func TestAccumulate_MissingVariableAbortsRun(t *testing.T) {
	ds := newFixture()
	var applied []int
	var runErr error
	for state, err := range newTestAccumulator().Steps(context.Background(), AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "ones",
		Mask:    MaskPolicy{Variable: "cfrzr", Threshold: 1},
		Steps:   StepList{0, 1, 2},
	}) {
		if err != nil {
			runErr = err
			break
		}
		applied = append(applied, state.Step)
	}
	var nf *domain.VariableNotFoundError
	require.True(t, errors.As(runErr, &nf), "got %v", runErr)
	assert.Equal(t, "cfrzr", nf.Variable)
	assert.Equal(t, 1, nf.Step)
	assert.Equal(t, []int{0}, applied)
}

func TestAccumulate_Canceled(t *testing.T) {
	ds := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAccumulator().Accumulate(ctx, AccumulationRequest{
		Dataset: ds,
		Domain:  fixtureDomain(t, ds),
		Total:   fixtureSteps,
		Primary: "ones",
		Steps:   StepList{0},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccumulate_InvalidRequest(t *testing.T) {
	ds := newFixture()
	dom := fixtureDomain(t, ds)
	tests := []struct {
		name string
		req  AccumulationRequest
	}{
		{"no dataset", AccumulationRequest{Domain: dom, Total: 5, Primary: "ones", Steps: StepList{0}}},
		{"no domain", AccumulationRequest{Dataset: ds, Total: 5, Primary: "ones", Steps: StepList{0}}},
		{"no primary", AccumulationRequest{Dataset: ds, Domain: dom, Total: 5, Steps: StepList{0}}},
		{"no selector", AccumulationRequest{Dataset: ds, Domain: dom, Total: 5, Primary: "ones"}},
		{"empty list", AccumulationRequest{Dataset: ds, Domain: dom, Total: 5, Primary: "ones", Steps: StepList{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAccumulator().Accumulate(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}
