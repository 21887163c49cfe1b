package usecase

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/observability"
)

// DefaultArtifactExt is the extension of rendered frames.
const DefaultArtifactExt = ".png"

// Frame is one step's labeled, spatially subset data ready for rendering.
type Frame struct {
	Step      int
	Label     string
	Title     string
	ValidTime domain.ValidTime
	// Arrays maps variable names to [lat, lon] subgrids.
	Arrays       map[string]*mat.Dense
	ArtifactPath string
	// Domain is shared between frames and must not be modified.
	Domain *domain.GeoDomain
}

// Variables returns the array names in sorted order.
func (f Frame) Variables() []string {
	names := make([]string, 0, len(f.Arrays))
	for name := range f.Arrays {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ArtifactPath returns prefix + two-digit step + ext.
func ArtifactPath(prefix string, step int, ext string) string {
	if ext == "" {
		ext = DefaultArtifactExt
	}
	return fmt.Sprintf("%s%02d%s", prefix, step, ext)
}

// FrameRequest selects variables and steps for frame building.
type FrameRequest struct {
	Variables []string
	// Steps defaults to every step of the time axis.
	Steps StepSelector
	// Prefix is prepended to the artifact file name and may include a directory.
	Prefix string
	Ext    string
	// Title heads each frame; accumulated frames default to "Through <label>".
	Title string
	// Scale multiplies accumulated grids; zero means 1.
	Scale float64
}

// FrameBuilder produces frames from an open dataset.
type FrameBuilder struct {
	metrics *observability.Metrics
}

// NewFrameBuilder creates a FrameBuilder. metrics may be nil.
func NewFrameBuilder(metrics *observability.Metrics) *FrameBuilder {
	return &FrameBuilder{metrics: metrics}
}

// BuildFrames yields one frame per selected step in ascending step order.
// Frames are produced lazily; a failed step ends the sequence.
func (b *FrameBuilder) BuildFrames(ctx context.Context, ds store.Dataset, dom *domain.GeoDomain, axis *domain.TimeAxis, req FrameRequest) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if len(req.Variables) == 0 {
			yield(Frame{}, fmt.Errorf("no variables requested"))
			return
		}
		selector := req.Steps
		if selector == nil {
			selector = StepRange{Start: 0, End: AllSteps}
		}
		steps, err := selector.Select(axis.Len())
		if err != nil {
			yield(Frame{}, fmt.Errorf("failed to select steps: %w", err))
			return
		}
		steps = slices.Clone(steps)
		slices.Sort(steps)
		steps = slices.Compact(steps)

		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				yield(Frame{}, err)
				return
			}
			frame, err := b.frame(ds, dom, axis, req, step)
			if err != nil {
				b.countError()
				yield(Frame{}, err)
				return
			}
			b.countFrame("plain")
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (b *FrameBuilder) frame(ds store.Dataset, dom *domain.GeoDomain, axis *domain.TimeAxis, req FrameRequest, step int) (Frame, error) {
	vt, err := axis.At(step)
	if err != nil {
		return Frame{}, err
	}
	arrays := make(map[string]*mat.Dense, len(req.Variables))
	for _, name := range req.Variables {
		start := time.Now()
		grid, err := ds.ReadGrid(name, step, dom.Lat, dom.Lon)
		if b.metrics != nil {
			b.metrics.GridReadDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return Frame{}, fmt.Errorf("failed to read %s at step %d: %w", name, step, err)
		}
		arrays[name] = grid
	}
	return Frame{
		Step:         step,
		Label:        vt.Label,
		Title:        req.Title,
		ValidTime:    vt,
		Arrays:       arrays,
		ArtifactPath: ArtifactPath(req.Prefix, step, req.Ext),
		Domain:       dom,
	}, nil
}

// AccumulatedFrames yields a frame after each accumulation step holding a
// copy of the running total under the primary variable name. Frames follow
// the selector order of the accumulation request, so a StepList that does
// not increase yields totals whose artifact names sort out of run order.
// Pipeline.Execute rejects such lists when the run animates.
func (b *FrameBuilder) AccumulatedFrames(ctx context.Context, acc *Accumulator, accReq AccumulationRequest, axis *domain.TimeAxis, req FrameRequest) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if accReq.Total == 0 {
			accReq.Total = axis.Len()
		}
		scale := req.Scale
		if scale == 0 {
			scale = 1
		}
		for state, err := range acc.Steps(ctx, accReq) {
			if err != nil {
				b.countError()
				yield(Frame{}, err)
				return
			}
			vt, err := axis.At(state.Step)
			if err != nil {
				b.countError()
				yield(Frame{}, err)
				return
			}

			total := mat.DenseCopyOf(state.Grid)
			if scale != 1 {
				total.Scale(scale, total)
			}
			title := req.Title
			if title == "" {
				title = "Through " + vt.Label
			} else {
				title = title + " through " + vt.Label
			}

			b.countFrame("accumulated")
			frame := Frame{
				Step:         state.Step,
				Label:        vt.Label,
				Title:        title,
				ValidTime:    vt,
				Arrays:       map[string]*mat.Dense{accReq.Primary: total},
				ArtifactPath: ArtifactPath(req.Prefix, state.Step, req.Ext),
				Domain:       accReq.Domain,
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (b *FrameBuilder) countFrame(kind string) {
	if b.metrics != nil {
		b.metrics.FramesBuilt.WithLabelValues(kind).Inc()
	}
}

func (b *FrameBuilder) countError() {
	if b.metrics != nil {
		b.metrics.FrameErrors.Inc()
	}
}
