package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"go.ngs.io/forecast-frames/internal/adapter/encoder"
	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/observability"
)

// Renderer draws a frame to its artifact path.
type Renderer interface {
	Render(ctx context.Context, frame Frame) error
}

// Assembler turns rendered artifacts into animations.
type Assembler interface {
	Assemble(ctx context.Context, prefix string, frameCount int) (encoder.Result, error)
}

// AccumulationSpec selects accumulation mode for a pipeline run.
type AccumulationSpec struct {
	Primary  string
	Mask     MaskPolicy
	SeedZero bool
	Op       CombineFunc
}

// PipelineRequest encapsulates one forecast-to-frames run.
type PipelineRequest struct {
	// Source selection; Location overrides the resolved model URL.
	Model    string
	Date     string
	Cycle    string
	Location string

	Box           domain.BoundingBox
	DomainOptions domain.DomainOptions
	Zone          *time.Location
	TimeOptions   domain.TimeAxisOptions

	Variables []string
	Steps     StepSelector
	// Accumulation switches the run to accumulated frames.
	Accumulation *AccumulationSpec

	Prefix  string
	Title   string
	Scale   float64
	Animate bool
}

// Validate checks if the request is complete.
func (r *PipelineRequest) Validate() error {
	if r.Location == "" && r.Model == "" {
		return fmt.Errorf("either model or location must be provided")
	}
	if r.Prefix == "" {
		return fmt.Errorf("artifact prefix is required")
	}
	if r.Accumulation == nil && len(r.Variables) == 0 {
		return fmt.Errorf("at least one variable is required")
	}
	if r.Accumulation != nil && r.Accumulation.Primary == "" {
		return fmt.Errorf("accumulation requires a primary variable")
	}
	return r.Box.Validate()
}

// RenderedFrame summarises a rendered frame.
type RenderedFrame struct {
	Step         int    `json:"step"`
	Label        string `json:"label"`
	ArtifactPath string `json:"artifact_path"`
}

// PipelineResult reports what a run produced.
type PipelineResult struct {
	Source    string            `json:"source"`
	Frames    []RenderedFrame   `json:"frames"`
	Animation *encoder.Result   `json:"animation,omitempty"`
	Domain    *domain.GeoDomain `json:"-"`
}

// Pipeline orchestrates resolve, open, index, accumulate, render and assemble.
type Pipeline struct {
	resolver    domain.SourceResolver
	opener      store.Opener
	renderer    Renderer
	assembler   Assembler
	accumulator *Accumulator
	frames      *FrameBuilder
	logger      *zap.SugaredLogger
	metrics     *observability.Metrics
}

// NewPipeline wires a pipeline. assembler may be nil when no run animates;
// metrics may be nil.
func NewPipeline(resolver domain.SourceResolver, opener store.Opener, renderer Renderer, assembler Assembler, logger *zap.SugaredLogger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		resolver:    resolver,
		opener:      opener,
		renderer:    renderer,
		assembler:   assembler,
		accumulator: NewAccumulator(logger, metrics),
		frames:      NewFrameBuilder(metrics),
		logger:      logger,
		metrics:     metrics,
	}
}

// Execute runs the pipeline. The dataset is closed exactly once on every
// path, and no animation is assembled unless every frame rendered.
func (p *Pipeline) Execute(ctx context.Context, req PipelineRequest) (result *PipelineResult, err error) {
	defer func() {
		if p.metrics == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		p.metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	}()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.Animate && p.assembler == nil {
		return nil, fmt.Errorf("animation requested but no assembler configured")
	}

	location := req.Location
	if location == "" {
		location, err = p.resolver.Resolve(req.Model, req.Date, req.Cycle)
		if err != nil {
			return nil, err
		}
	}

	p.logger.Infow("opening dataset", "location", location)
	ds, err := p.opener.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil {
			p.logger.Warnw("failed to close dataset", "location", location, "error", cerr)
		}
	}()

	dom, err := LoadDomain(ds, req.Box, req.DomainOptions)
	if err != nil {
		return nil, err
	}
	axis, err := LoadTimeAxis(ds, req.Zone, req.TimeOptions)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("dataset indexed",
		"rows", dom.Rows(),
		"cols", dom.Cols(),
		"steps", axis.Len(),
	)

	// Animations order artifacts by step, so running totals must be too.
	if req.Accumulation != nil && req.Animate {
		if err := requireAscending(accumulationSteps(req), axis.Len()); err != nil {
			return nil, err
		}
	}

	result = &PipelineResult{Source: location, Domain: dom}
	for frame, err := range p.frameSeq(ctx, ds, dom, axis, req) {
		if err != nil {
			return nil, err
		}
		if err := p.renderer.Render(ctx, frame); err != nil {
			if p.metrics != nil {
				p.metrics.FrameErrors.Inc()
			}
			return nil, fmt.Errorf("failed to render step %d: %w", frame.Step, err)
		}
		p.logger.Debugw("rendered frame", "step", frame.Step, "path", frame.ArtifactPath)
		result.Frames = append(result.Frames, RenderedFrame{
			Step:         frame.Step,
			Label:        frame.Label,
			ArtifactPath: frame.ArtifactPath,
		})
	}

	if req.Animate {
		anim, err := p.assembler.Assemble(ctx, req.Prefix, len(result.Frames))
		if err != nil {
			return nil, err
		}
		result.Animation = &anim
	}
	return result, nil
}

func (p *Pipeline) frameSeq(ctx context.Context, ds store.Dataset, dom *domain.GeoDomain, axis *domain.TimeAxis, req PipelineRequest) iter.Seq2[Frame, error] {
	freq := FrameRequest{
		Variables: req.Variables,
		Steps:     req.Steps,
		Prefix:    req.Prefix,
		Title:     req.Title,
		Scale:     req.Scale,
	}
	if req.Accumulation == nil {
		return p.frames.BuildFrames(ctx, ds, dom, axis, freq)
	}
	return p.frames.AccumulatedFrames(ctx, p.accumulator, AccumulationRequest{
		Dataset:  ds,
		Domain:   dom,
		Total:    axis.Len(),
		Primary:  req.Accumulation.Primary,
		Mask:     req.Accumulation.Mask,
		Steps:    accumulationSteps(req),
		Op:       req.Accumulation.Op,
		SeedZero: req.Accumulation.SeedZero,
	}, axis, freq)
}

func accumulationSteps(req PipelineRequest) StepSelector {
	if req.Steps == nil {
		return StepRange{Start: 0, End: AllSteps}
	}
	return req.Steps
}

// LoadDomain reads the lat/lon axes of ds and indexes box against them.
func LoadDomain(ds store.Dataset, box domain.BoundingBox, opts domain.DomainOptions) (*domain.GeoDomain, error) {
	lats, err := ds.Axis(store.AxisLat)
	if err != nil {
		return nil, fmt.Errorf("failed to read latitude axis: %w", err)
	}
	lons, err := ds.Axis(store.AxisLon)
	if err != nil {
		return nil, fmt.Errorf("failed to read longitude axis: %w", err)
	}
	return domain.ComputeDomain(lats, lons, box, opts)
}

// LoadTimeAxis reads the time axis of ds with its units and optional calendar.
func LoadTimeAxis(ds store.Dataset, zone *time.Location, opts domain.TimeAxisOptions) (*domain.TimeAxis, error) {
	raw, err := ds.Axis(store.AxisTime)
	if err != nil {
		return nil, fmt.Errorf("failed to read time axis: %w", err)
	}
	units, err := ds.Attr(store.AxisTime, "units")
	if err != nil {
		return nil, fmt.Errorf("failed to read time units: %w", err)
	}
	if opts.Calendar == "" {
		calendar, err := ds.Attr(store.AxisTime, "calendar")
		switch {
		case err == nil:
			opts.Calendar = calendar
		case !errors.Is(err, store.ErrAttrNotFound):
			return nil, fmt.Errorf("failed to read time calendar: %w", err)
		}
	}
	return domain.ResolveTimeAxis(raw, units, zone, opts)
}
