package usecase

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/observability"
)

// CombineFunc folds a step contribution into the running grid in place.
// Both slices have the same length.
type CombineFunc func(dst, contribution []float64)

// Add is the default CombineFunc: element-wise dst += contribution.
func Add(dst, contribution []float64) {
	floats.Add(dst, contribution)
}

// Max keeps the element-wise maximum, e.g. for peak gust maps.
func Max(dst, contribution []float64) {
	for i, v := range contribution {
		if v > dst[i] {
			dst[i] = v
		}
	}
}

// MaskPolicy gates contributions by a companion categorical field: cells
// where Variable < Threshold contribute zero. The zero value disables masking.
type MaskPolicy struct {
	Variable  string
	Threshold float64
}

// Enabled reports whether a mask variable is set.
func (m MaskPolicy) Enabled() bool {
	return m.Variable != ""
}

// AccumulationRequest describes one accumulation run.
type AccumulationRequest struct {
	Dataset store.Dataset
	Domain  *domain.GeoDomain
	// Total is the number of forecast steps, normally TimeAxis.Len().
	Total int

	Primary string
	Mask    MaskPolicy
	Steps   StepSelector
	Op      CombineFunc

	// SeedZero starts from a zero grid so the first selected step is a
	// masked contribution like every other step.
	SeedZero bool
}

// AccumulationState is the running total after the steps in Steps.
// It is owned by a single accumulation run.
type AccumulationState struct {
	Grid  *mat.Dense
	Steps []int
	// Step is the most recently applied step index.
	Step int
	Mask MaskPolicy
}

// Includes reports whether step has already been applied.
func (s *AccumulationState) Includes(step int) bool {
	return slices.Contains(s.Steps, step)
}

// Snapshot returns a deep copy that is unaffected by later steps.
func (s *AccumulationState) Snapshot() *AccumulationState {
	return &AccumulationState{
		Grid:  mat.DenseCopyOf(s.Grid),
		Steps: slices.Clone(s.Steps),
		Step:  s.Step,
		Mask:  s.Mask,
	}
}

// Accumulator runs accumulations against datasets.
type Accumulator struct {
	logger  *zap.SugaredLogger
	metrics *observability.Metrics
}

// NewAccumulator creates an Accumulator. metrics may be nil.
func NewAccumulator(logger *zap.SugaredLogger, metrics *observability.Metrics) *Accumulator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Accumulator{logger: logger, metrics: metrics}
}

// Accumulate runs every selected step and returns the final state.
func (a *Accumulator) Accumulate(ctx context.Context, req AccumulationRequest) (*AccumulationState, error) {
	var last *AccumulationState
	for state, err := range a.Steps(ctx, req) {
		if err != nil {
			return nil, err
		}
		last = state
	}
	return last, nil
}

// Steps yields the running state after each selected step is applied.
// The yielded state is live: its grid changes when iteration continues, so
// callers that keep it must take a Snapshot. The first error ends the run.
func (a *Accumulator) Steps(ctx context.Context, req AccumulationRequest) iter.Seq2[*AccumulationState, error] {
	return func(yield func(*AccumulationState, error) bool) {
		steps, err := a.plan(req)
		if err != nil {
			yield(nil, err)
			return
		}

		state := &AccumulationState{Mask: req.Mask, Step: -1}
		op := req.Op
		if op == nil {
			op = Add
		}
		rows, cols := req.Domain.Rows(), req.Domain.Cols()

		for i, step := range steps {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if state.Includes(step) {
				yield(nil, fmt.Errorf("step %d: %w", step, domain.ErrStepReplayed))
				return
			}

			contribution, err := a.read(req, req.Primary, step)
			if err != nil {
				yield(nil, err)
				return
			}
			if r, c := contribution.Dims(); r != rows || c != cols {
				yield(nil, fmt.Errorf("%s at step %d is %dx%d, domain is %dx%d", req.Primary, step, r, c, rows, cols))
				return
			}

			seed := i == 0 && !req.SeedZero
			if seed {
				state.Grid = contribution
			} else {
				if state.Grid == nil {
					state.Grid = mat.NewDense(rows, cols, nil)
				}
				if req.Mask.Enabled() {
					if err := a.applyMask(req, step, contribution); err != nil {
						yield(nil, err)
						return
					}
				}
				op(state.Grid.RawMatrix().Data, contribution.RawMatrix().Data)
			}

			state.Steps = append(state.Steps, step)
			state.Step = step
			if a.metrics != nil {
				a.metrics.StepsAccumulated.Inc()
			}
			a.logger.Debugw("accumulated step",
				"variable", req.Primary,
				"step", step,
				"seed", seed,
				"applied", len(state.Steps),
			)

			if !yield(state, nil) {
				return
			}
		}
	}
}

// plan validates the request and resolves the selector.
func (a *Accumulator) plan(req AccumulationRequest) ([]int, error) {
	if req.Dataset == nil {
		return nil, fmt.Errorf("accumulation requires a dataset")
	}
	if req.Domain == nil {
		return nil, fmt.Errorf("accumulation requires a domain")
	}
	if req.Primary == "" {
		return nil, fmt.Errorf("accumulation requires a primary variable")
	}
	if req.Steps == nil {
		return nil, fmt.Errorf("accumulation requires a step selector")
	}
	steps, err := req.Steps.Select(req.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to select steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	return steps, nil
}

// applyMask zeroes contribution cells whose mask value is below threshold.
func (a *Accumulator) applyMask(req AccumulationRequest, step int, contribution *mat.Dense) error {
	mask, err := a.read(req, req.Mask.Variable, step)
	if err != nil {
		return err
	}
	data := contribution.RawMatrix().Data
	maskData := mask.RawMatrix().Data
	if len(maskData) != len(data) {
		return fmt.Errorf("mask %s at step %d does not match %s shape", req.Mask.Variable, step, req.Primary)
	}
	for i, m := range maskData {
		if m < req.Mask.Threshold {
			data[i] = 0
		}
	}
	return nil
}

func (a *Accumulator) read(req AccumulationRequest, variable string, step int) (*mat.Dense, error) {
	start := time.Now()
	grid, err := req.Dataset.ReadGrid(variable, step, req.Domain.Lat, req.Domain.Lon)
	if a.metrics != nil {
		a.metrics.GridReadDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at step %d: %w", variable, step, err)
	}
	return grid, nil
}
