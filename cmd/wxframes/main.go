// Package main provides the wxframes command, which renders forecast model
// output into per-step map frames and animations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"go.ngs.io/forecast-frames/internal/adapter/encoder"
	"go.ngs.io/forecast-frames/internal/adapter/render"
	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/adapter/store/ncfile"
	"go.ngs.io/forecast-frames/internal/config"
	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/observability"
	"go.ngs.io/forecast-frames/internal/usecase"
)

var exampleUsage = strings.TrimSpace(`
  wxframes source --model GFS --date 20240305 --cycle 12
  wxframes frames --model HRRR --cycle 06 --domain WISCONSIN --var apcpsfc --out out/qpf --animate
  wxframes accumulate --model NAM3K --var apcpsfc --mask-var csnowsfc --scale 0.7874 --palette snow --out out/snow
  wxframes animate --out out/qpf --count 18
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cliEnv carries what the commands need from the outside world.
type cliEnv struct {
	stdout io.Writer
	// openerFor builds the dataset opener for a level index.
	openerFor func(level int) store.Opener
	runner    encoder.Runner
}

// globalFlags apply to every subcommand.
type globalFlags struct {
	debug       bool
	zone        string
	domainsFile string
	baseURL     string
	metricsFile string
}

// runFlags select a source, a domain and the frames to draw.
type runFlags struct {
	model    string
	date     string
	cycle    string
	location string

	domain    string
	bbox      string
	inclusive bool
	normalize bool
	level     int

	vars     []string
	steps    string
	out      string
	title    string
	scale    float64
	palette  string
	ptype    bool
	metadata bool
	animate  bool
}

// accumFlags extend runFlags for accumulated runs.
type accumFlags struct {
	maskVar       string
	maskThreshold float64
	seedZero      bool
	op            string
}

func main() {
	env := &cliEnv{
		stdout: os.Stdout,
		openerFor: func(level int) store.Opener {
			cfg := ncfile.DefaultConfig()
			cfg.Level = level
			return ncfile.Opener(cfg)
		},
		runner: encoder.ExecRunner{},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(env).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(env *cliEnv) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "wxframes",
		Short:        "Render forecast model output into map frames and animations",
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.BoolVar(&g.debug, "debug", false, "Enable development logging")
	pf.StringVar(&g.zone, "zone", "America/Chicago", "Time zone used for frame labels")
	pf.StringVar(&g.domainsFile, "domains-file", "", "TOML file with extra named domains")
	pf.StringVar(&g.baseURL, "base-url", domain.DefaultBaseURL, "OPeNDAP root the models are served from")
	pf.StringVar(&g.metricsFile, "metrics-textfile", "", "Write run metrics in Prometheus text format to this file on exit")

	root.AddCommand(
		newSourceCmd(env, g),
		newFramesCmd(env, g),
		newAccumulateCmd(env, g),
		newAnimateCmd(env, g),
	)
	return root
}

func newSourceCmd(env *cliEnv, g *globalFlags) *cobra.Command {
	var model, date, cycle string
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Print the dataset location for a model run",
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := domain.SourceResolver{BaseURL: g.baseURL}.Resolve(model, date, cycle)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(env.stdout, location)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "GFS", "Forecast model identifier")
	f.StringVar(&date, "date", domain.DefaultRunDate(), "Run date (YYYYMMDD, UTC)")
	f.StringVar(&cycle, "cycle", "00", "Run cycle hour (00-23)")
	return cmd
}

func addRunFlags(f *pflag.FlagSet, r *runFlags) {
	f.StringVar(&r.model, "model", "GFS", "Forecast model identifier")
	f.StringVar(&r.date, "date", domain.DefaultRunDate(), "Run date (YYYYMMDD, UTC)")
	f.StringVar(&r.cycle, "cycle", "00", "Run cycle hour (00-23)")
	f.StringVar(&r.location, "location", "", "Dataset path or URL; overrides model/date/cycle")
	f.StringVar(&r.domain, "domain", "WISCONSIN", "Named map domain")
	f.StringVar(&r.bbox, "bbox", "", "Explicit box lower_lat,upper_lat,left_lon,right_lon")
	f.BoolVar(&r.inclusive, "inclusive", false, "Include the grid point nearest the upper and right edges")
	f.BoolVar(&r.normalize, "normalize", false, "Convert the box into the dataset longitude convention")
	f.IntVar(&r.level, "level", 0, "Level index for 4-D variables")
	f.StringSliceVar(&r.vars, "var", nil, "Variable(s) to draw")
	f.StringVar(&r.steps, "steps", "", `Steps: "all", "3-9", "3-", "1,2,3" or "0/3"`)
	f.StringVar(&r.out, "out", "frames/frame", "Artifact prefix; frames are written as <out><step>.png")
	f.StringVar(&r.title, "title", "", "Frame title")
	f.Float64Var(&r.scale, "scale", 1, "Unit conversion applied to values")
	f.StringVar(&r.palette, "palette", "qpf", "Color palette (qpf, snow)")
	f.BoolVar(&r.ptype, "ptype", false, "Draw precipitation type categories instead of a palette")
	f.BoolVar(&r.metadata, "metadata", false, "Write a JSON sidecar next to each frame")
	f.BoolVar(&r.animate, "animate", false, "Assemble a GIF and MP4 after rendering")
}

func newFramesCmd(env *cliEnv, g *globalFlags) *cobra.Command {
	r := &runFlags{}
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Render one frame per forecast step",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(r.vars) == 0 {
				return fmt.Errorf("at least one --var is required")
			}
			req, err := buildRequest(g, r)
			if err != nil {
				return err
			}
			req.Variables = r.vars
			renderer, err := buildRenderer(r, r.scale)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), env, g, r, renderer, req)
		},
	}
	addRunFlags(cmd.Flags(), r)
	return cmd
}

func newAccumulateCmd(env *cliEnv, g *globalFlags) *cobra.Command {
	r := &runFlags{}
	a := &accumFlags{}
	cmd := &cobra.Command{
		Use:   "accumulate",
		Short: "Render running totals of a variable across forecast steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(r.vars) != 1 {
				return fmt.Errorf("accumulate takes exactly one --var")
			}
			req, err := buildRequest(g, r)
			if err != nil {
				return err
			}
			op, err := parseOp(a.op)
			if err != nil {
				return err
			}
			req.Accumulation = &usecase.AccumulationSpec{
				Primary:  r.vars[0],
				Mask:     usecase.MaskPolicy{Variable: a.maskVar, Threshold: a.maskThreshold},
				SeedZero: a.seedZero,
				Op:       op,
			}
			req.Scale = r.scale
			if req.Steps == nil && r.location == "" {
				if m, err := domain.LookupModel(r.model); err == nil {
					req.Steps = usecase.StepStride{Start: 0, K: m.AccumStride}
				}
			}
			renderer, err := buildRenderer(r, 1)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), env, g, r, renderer, req)
		},
	}
	f := cmd.Flags()
	addRunFlags(f, r)
	f.StringVar(&a.maskVar, "mask-var", "", "Categorical variable gating each step's contribution")
	f.Float64Var(&a.maskThreshold, "mask-threshold", 1, "Mask value at or above which a cell contributes")
	f.BoolVar(&a.seedZero, "seed-zero", false, "Start from zero instead of the first selected step")
	f.StringVar(&a.op, "op", "add", "Combine operation (add, max)")
	return cmd
}

func newAnimateCmd(env *cliEnv, g *globalFlags) *cobra.Command {
	var (
		out   string
		count int
	)
	cmd := &cobra.Command{
		Use:   "animate",
		Short: "Assemble already rendered frames into a GIF and MP4",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			logger, err := observability.NewLogger(g.debug)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			metrics, reg := newRunMetrics()
			defer func() { err = errors.Join(err, writeMetrics(g.metricsFile, reg)) }()

			asm := encoder.NewAssembler(encoder.DefaultConfig(), env.runner, logger, metrics)
			if count == 0 {
				frames, err := asm.Frames(out)
				if err != nil {
					return err
				}
				count = len(frames)
			}
			res, err := asm.Assemble(cmd.Context(), out, count)
			if err != nil {
				return err
			}
			return writeJSON(env.stdout, res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&out, "out", "frames/frame", "Artifact prefix the frames were written with")
	f.IntVar(&count, "count", 0, "Number of frames expected; 0 uses every frame found")
	return cmd
}

// buildRequest turns the common flags into a pipeline request.
func buildRequest(g *globalFlags, r *runFlags) (usecase.PipelineRequest, error) {
	zone, err := time.LoadLocation(g.zone)
	if err != nil {
		return usecase.PipelineRequest{}, fmt.Errorf("invalid --zone %q: %w", g.zone, err)
	}

	box, scale, err := resolveBox(g, r)
	if err != nil {
		return usecase.PipelineRequest{}, err
	}

	var steps usecase.StepSelector
	if r.steps != "" {
		if steps, err = usecase.ParseSteps(r.steps); err != nil {
			return usecase.PipelineRequest{}, err
		}
	}

	bounds := domain.BoundsHalfOpen
	if r.inclusive {
		bounds = domain.BoundsInclusive
	}

	return usecase.PipelineRequest{
		Model:    r.model,
		Date:     r.date,
		Cycle:    r.cycle,
		Location: r.location,
		Box:      box,
		DomainOptions: domain.DomainOptions{
			Scale:     scale,
			Bounds:    bounds,
			Normalize: r.normalize,
		},
		Zone:    zone,
		Steps:   steps,
		Prefix:  r.out,
		Title:   r.title,
		Animate: r.animate,
	}, nil
}

// resolveBox picks the bounding box from --bbox or the named domain.
func resolveBox(g *globalFlags, r *runFlags) (domain.BoundingBox, domain.MapScale, error) {
	presets := domain.DefaultPresets()
	if g.domainsFile != "" {
		if err := config.MergePresetFile(presets, g.domainsFile); err != nil {
			return domain.BoundingBox{}, domain.MapScale{}, err
		}
	}

	if r.bbox != "" {
		box, err := parseBBox(r.bbox)
		if err != nil {
			return domain.BoundingBox{}, domain.MapScale{}, err
		}
		return box, domain.ScaleLCCIntermediate, nil
	}

	var (
		p  domain.Preset
		ok bool
	)
	if m, err := domain.LookupModel(r.model); err == nil && r.location == "" {
		p, ok = presets.ForModel(r.domain, m)
	} else {
		p, ok = presets.Get(r.domain)
	}
	if !ok {
		return domain.BoundingBox{}, domain.MapScale{}, fmt.Errorf("unknown domain %q (known: %s)", r.domain, strings.Join(presets.Names(), ", "))
	}
	return p.Box, p.Scale, nil
}

// parseBBox parses "lower_lat,upper_lat,left_lon,right_lon". Longitudes
// above 180 mark the box as 0..360.
func parseBBox(s string) (domain.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, fmt.Errorf("invalid --bbox %q: expected four comma-separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("invalid --bbox %q: %w", s, err)
		}
		v[i] = f
	}
	box := domain.BoundingBox{
		LowerLat:   v[0],
		UpperLat:   v[1],
		LeftLon:    v[2],
		RightLon:   v[3],
		Convention: domain.DetectLonConvention([]float64{v[2], v[3]}),
	}
	return box, box.Validate()
}

func parseOp(s string) (usecase.CombineFunc, error) {
	switch strings.ToLower(s) {
	case "", "add", "sum":
		return usecase.Add, nil
	case "max":
		return usecase.Max, nil
	}
	return nil, fmt.Errorf("unknown --op %q", s)
}

func buildRenderer(r *runFlags, scale float64) (*render.PNG, error) {
	if r.ptype {
		renderer := &render.PNG{Layers: render.PrecipTypeLayers(), CellSize: 4}
		renderer.Metadata = r.metadata
		return renderer, nil
	}
	p, err := render.PaletteByName(r.palette)
	if err != nil {
		return nil, err
	}
	renderer := render.NewPNG(p, scale)
	renderer.Metadata = r.metadata
	return renderer, nil
}

func execute(ctx context.Context, env *cliEnv, g *globalFlags, r *runFlags, renderer usecase.Renderer, req usecase.PipelineRequest) (err error) {
	logger, err := observability.NewLogger(g.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics, reg := newRunMetrics()
	defer func() { err = errors.Join(err, writeMetrics(g.metricsFile, reg)) }()

	var assembler usecase.Assembler
	if req.Animate {
		assembler = encoder.NewAssembler(encoder.DefaultConfig(), env.runner, logger, metrics)
	}
	pipeline := usecase.NewPipeline(
		domain.SourceResolver{BaseURL: g.baseURL},
		env.openerFor(r.level),
		renderer,
		assembler,
		logger,
		metrics,
	)
	result, err := pipeline.Execute(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(env.stdout, result)
}

// newRunMetrics registers a fresh set of metrics for one command invocation.
func newRunMetrics() (*observability.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return observability.NewMetricsWith(reg), reg
}

// writeMetrics dumps reg for the node_exporter textfile collector. An empty
// path disables it.
func writeMetrics(path string, reg prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
