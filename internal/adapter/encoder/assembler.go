// Package encoder assembles rendered frames into GIF and MP4 animations
// using ImageMagick and ffmpeg.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go.ngs.io/forecast-frames/internal/observability"
)

// ErrNoFrames is returned when assembly is requested without frames.
var ErrNoFrames = errors.New("animation requires at least one frame")

// ExternalToolError reports a failed external process.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// Runner executes an external tool in dir.
type Runner interface {
	Run(ctx context.Context, dir, tool string, args ...string) error
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct{}

// Run executes tool and converts failures into *ExternalToolError.
func (ExecRunner) Run(ctx context.Context, dir, tool string, args ...string) error {
	//nolint:gosec // G204: tool paths come from configuration.
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExternalToolError{
			Tool:     tool,
			Args:     args,
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return nil
}

// Config holds the encode parameters.
type Config struct {
	ConvertPath string
	FFmpegPath  string
	// Delay and FinalDelay are in hundredths of a second.
	Delay      int
	FinalDelay int
	Loop       int
	Width      int
	Height     int
	CRF        int
	Ext        string
}

// DefaultConfig returns the parameters used for published loops.
func DefaultConfig() Config {
	return Config{
		ConvertPath: "convert",
		FFmpegPath:  "ffmpeg",
		Delay:       80,
		FinalDelay:  200,
		Loop:        0,
		Width:       1024,
		Height:      512,
		CRF:         25,
		Ext:         ".png",
	}
}

// Result names the produced animations.
type Result struct {
	GIF    string   `json:"gif"`
	MP4    string   `json:"mp4"`
	Frames []string `json:"frames"`
}

// Assembler builds animations from numbered frame artifacts.
type Assembler struct {
	cfg     Config
	runner  Runner
	logger  *zap.SugaredLogger
	metrics *observability.Metrics
}

// NewAssembler creates an Assembler. A nil runner uses ExecRunner; metrics may be nil.
func NewAssembler(cfg Config, runner Runner, logger *zap.SugaredLogger, metrics *observability.Metrics) *Assembler {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Ext == "" {
		cfg.Ext = ".png"
	}
	return &Assembler{cfg: cfg, runner: runner, logger: logger, metrics: metrics}
}

// Assemble encodes <prefix>NN<ext> artifacts, in step order, into
// <prefix>.gif and then <prefix>.mp4. Rendered frames are left in place
// when a tool fails.
func (a *Assembler) Assemble(ctx context.Context, prefix string, frameCount int) (Result, error) {
	if frameCount < 1 {
		return Result{}, ErrNoFrames
	}

	frames, err := a.Frames(prefix)
	if err != nil {
		return Result{}, err
	}
	if len(frames) < frameCount {
		return Result{}, fmt.Errorf("expected %d frames for %s, found %d", frameCount, prefix, len(frames))
	}

	dir, base := splitPrefix(prefix)
	gif := base + ".gif"
	mp4 := base + ".mp4"

	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = filepath.Base(f)
	}
	if err := a.run(ctx, dir, a.cfg.ConvertPath, a.convertArgs(names, gif)...); err != nil {
		return Result{}, err
	}
	if err := a.run(ctx, dir, a.cfg.FFmpegPath, a.ffmpegArgs(gif, mp4)...); err != nil {
		return Result{}, err
	}

	res := Result{
		GIF:    filepath.Join(dir, gif),
		MP4:    filepath.Join(dir, mp4),
		Frames: frames,
	}
	a.logger.Infow("animation assembled", "gif", res.GIF, "mp4", res.MP4, "frames", len(frames))
	return res, nil
}

// Frames lists the artifacts for prefix sorted by their numeric step suffix.
func (a *Assembler) Frames(prefix string) ([]string, error) {
	dir, base := splitPrefix(prefix)
	if base == "" {
		return nil, fmt.Errorf("artifact prefix %q has no file name part", prefix)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}

	type numbered struct {
		step int
		path string
	}
	var found []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		step, ok := stepSuffix(e.Name(), base, a.cfg.Ext)
		if !ok {
			continue
		}
		found = append(found, numbered{step: step, path: filepath.Join(dir, e.Name())})
	}
	slices.SortFunc(found, func(x, y numbered) int { return x.step - y.step })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

func splitPrefix(prefix string) (dir, base string) {
	dir, base = filepath.Split(prefix)
	if dir == "" {
		dir = "."
	}
	return filepath.Clean(dir), base
}

// stepSuffix extracts N from <base>N<ext> when N is all digits.
func stepSuffix(name, base, ext string) (int, bool) {
	if !strings.HasPrefix(name, base) || !strings.HasSuffix(name, ext) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, base), ext)
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a *Assembler) convertArgs(frames []string, gif string) []string {
	args := []string{"-delay", strconv.Itoa(a.cfg.Delay), "-loop", strconv.Itoa(a.cfg.Loop)}
	args = append(args, frames...)
	// Repeat the last frame with a longer hold before the loop restarts.
	args = append(args,
		"-delay", strconv.Itoa(a.cfg.FinalDelay), "-loop", strconv.Itoa(a.cfg.Loop),
		frames[len(frames)-1],
		"-resize", fmt.Sprintf("%dx%d", a.cfg.Width, a.cfg.Height),
		gif,
	)
	return args
}

func (a *Assembler) ffmpegArgs(gif, mp4 string) []string {
	return []string{
		"-i", gif,
		"-pix_fmt", "yuv420p",
		"-vcodec", "libx264",
		"-crf", strconv.Itoa(a.cfg.CRF),
		"-vf", fmt.Sprintf("scale=%d:%d", a.cfg.Width, a.cfg.Height),
		"-y", mp4,
	}
}

func (a *Assembler) run(ctx context.Context, dir, tool string, args ...string) error {
	label := filepath.Base(tool)
	start := time.Now()
	err := a.runner.Run(ctx, dir, tool, args...)
	if a.metrics != nil {
		a.metrics.ToolDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if err != nil {
			a.metrics.ToolFailures.WithLabelValues(label).Inc()
		}
	}
	if err != nil {
		a.logger.Errorw("encoder failed", "tool", label, "error", err)
		return err
	}
	return nil
}
