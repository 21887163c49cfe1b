package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/forecast-frames/internal/adapter/store"
	"go.ngs.io/forecast-frames/internal/adapter/store/memory"
	"go.ngs.io/forecast-frames/internal/domain"
	"go.ngs.io/forecast-frames/internal/usecase"
)

type recordingRunner struct {
	tools []string
}

func (r *recordingRunner) Run(_ context.Context, _ string, tool string, _ ...string) error {
	r.tools = append(r.tools, tool)
	return nil
}

type harness struct {
	env    *cliEnv
	out    *bytes.Buffer
	runner *recordingRunner
	opened []string
	level  int
}

func newHarness() *harness {
	h := &harness{out: &bytes.Buffer{}, runner: &recordingRunner{}}
	h.env = &cliEnv{
		stdout: h.out,
		openerFor: func(level int) store.Opener {
			h.level = level
			return store.OpenerFunc(func(_ context.Context, location string) (store.Dataset, error) {
				h.opened = append(h.opened, location)
				return &memory.Dataset{
					Lats:      []float64{30, 35, 40, 45, 50},
					Lons:      []float64{-100, -95, -90, -85, -80},
					Times:     []float64{0, 1, 2, 3},
					TimeUnits: "hours since 2020-01-01 00:00:00",
					Vars: map[string][][][]float64{
						"apcpsfc": memory.Constant(4, 5, 5, 0.5),
					},
				}, nil
			})
		},
		runner: h.runner,
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(h.env)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

type cliResult struct {
	Source string `json:"source"`
	Frames []struct {
		Step         int    `json:"step"`
		Label        string `json:"label"`
		ArtifactPath string `json:"artifact_path"`
	} `json:"frames"`
	Animation *struct {
		GIF string `json:"gif"`
		MP4 string `json:"mp4"`
	} `json:"animation"`
}

func TestSourceCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "source", "--model", "hrrr", "--date", "20240305", "--cycle", "06", "--base-url", "http://example.test/dods"))
	assert.Equal(t, "http://example.test/dods/hrrr/hrrr20240305/hrrr_sfc_06z\n", h.out.String())

	err := h.run(t, "source", "--model", "ECMWF", "--date", "20240305")
	var unknown *domain.UnknownModelError
	assert.ErrorAs(t, err, &unknown)

	assert.ErrorIs(t, h.run(t, "source", "--date", "20240305", "--cycle", "7"), domain.ErrInvalidRun)
}

func TestFramesCommand(t *testing.T) {
	h := newHarness()
	prefix := filepath.Join(t.TempDir(), "qpf")

	require.NoError(t, h.run(t, "frames",
		"--location", "mem://run",
		"--bbox", "36,44,-96,-84",
		"--var", "apcpsfc",
		"--steps", "1-3",
		"--zone", "UTC",
		"--level", "2",
		"--out", prefix,
		"--metadata",
	))
	assert.Equal(t, []string{"mem://run"}, h.opened)
	assert.Equal(t, 2, h.level)

	var res cliResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	require.Len(t, res.Frames, 2)
	assert.Equal(t, 1, res.Frames[0].Step)
	assert.Equal(t, "1 AM UTC, Wednesday, January 1, 2020", res.Frames[0].Label)
	assert.Nil(t, res.Animation)

	for _, name := range []string{"qpf01.png", "qpf02.png", "qpf01.json"} {
		_, err := os.Stat(filepath.Join(filepath.Dir(prefix), name))
		assert.NoError(t, err, name)
	}
}

func TestFramesCommand_Animate(t *testing.T) {
	h := newHarness()
	prefix := filepath.Join(t.TempDir(), "qpf")

	require.NoError(t, h.run(t, "frames",
		"--location", "mem://run",
		"--bbox", "36,44,-96,-84",
		"--var", "apcpsfc",
		"--zone", "UTC",
		"--out", prefix,
		"--animate",
	))
	assert.Equal(t, []string{"convert", "ffmpeg"}, h.runner.tools)

	var res cliResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	require.Len(t, res.Frames, 4)
	require.NotNil(t, res.Animation)
	assert.Equal(t, prefix+".gif", res.Animation.GIF)
}

func TestAccumulateCommand(t *testing.T) {
	h := newHarness()
	prefix := filepath.Join(t.TempDir(), "total")

	require.NoError(t, h.run(t, "accumulate",
		"--location", "mem://run",
		"--bbox", "36,44,-96,-84",
		"--var", "apcpsfc",
		"--zone", "UTC",
		"--title", "Total precipitation",
		"--palette", "snow",
		"--out", prefix,
	))

	var res cliResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	require.Len(t, res.Frames, 4)
	assert.Equal(t, 3, res.Frames[3].Step)
	_, err := os.Stat(prefix + "03.png")
	assert.NoError(t, err)
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"frames without var", []string{"frames", "--location", "mem://run"}},
		{"accumulate two vars", []string{"accumulate", "--location", "mem://run", "--var", "a,b"}},
		{"unknown domain", []string{"frames", "--location", "mem://run", "--var", "apcpsfc", "--domain", "ATLANTIS"}},
		{"bad bbox", []string{"frames", "--location", "mem://run", "--var", "apcpsfc", "--bbox", "1,2,3"}},
		{"bad steps", []string{"frames", "--location", "mem://run", "--var", "apcpsfc", "--steps", "x-y"}},
		{"bad zone", []string{"frames", "--location", "mem://run", "--var", "apcpsfc", "--zone", "Mars/Olympus"}},
		{"bad op", []string{"accumulate", "--location", "mem://run", "--var", "apcpsfc", "--bbox", "36,44,-96,-84", "--op", "mean"}},
		{"bad palette", []string{"frames", "--location", "mem://run", "--var", "apcpsfc", "--bbox", "36,44,-96,-84", "--palette", "radar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			assert.Error(t, h.run(t, tt.args...))
			assert.Empty(t, h.opened)
		})
	}
}

func TestAnimateCommand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"snow10.png", "snow02.png", "snow01.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o600))
	}

	h := newHarness()
	require.NoError(t, h.run(t, "animate", "--out", filepath.Join(dir, "snow")))
	assert.Equal(t, []string{"convert", "ffmpeg"}, h.runner.tools)

	var res struct {
		Frames []string `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &res))
	require.Len(t, res.Frames, 3)
	assert.Equal(t, "snow10.png", filepath.Base(res.Frames[2]))

	h = newHarness()
	assert.Error(t, h.run(t, "animate", "--out", filepath.Join(dir, "snow"), "--count", "4"))
}

func TestMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "wxframes.prom")

	h := newHarness()
	require.NoError(t, h.run(t, "frames",
		"--location", "mem://run",
		"--bbox", "36,44,-96,-84",
		"--var", "apcpsfc",
		"--steps", "1-3",
		"--out", filepath.Join(dir, "qpf"),
		"--animate",
		"--metrics-textfile", metricsPath,
	))
	raw, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `forecast_frames_pipeline_runs_total{outcome="success"} 1`)
	assert.Contains(t, text, `forecast_frames_frames_built_total{kind="plain"} 2`)
	assert.Contains(t, text, "forecast_frames_grid_read_duration_seconds_count 2")
	assert.Contains(t, text, `forecast_frames_tool_duration_seconds_count{tool="ffmpeg"} 1`)

	// Failed runs still leave their counters behind.
	h = newHarness()
	require.Error(t, h.run(t, "frames",
		"--location", "mem://run",
		"--bbox", "36,44,-96,-84",
		"--var", "apcpsfc",
		"--steps", "2-9",
		"--out", filepath.Join(dir, "qpf"),
		"--metrics-textfile", metricsPath,
	))
	raw, err = os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `forecast_frames_pipeline_runs_total{outcome="error"} 1`)
	assert.NotContains(t, string(raw), `outcome="success"`)
}

func TestAccumulateCommand_AnimateRejectsUnorderedSteps(t *testing.T) {
	h := newHarness()
	err := h.run(t, "accumulate",
		"--location", "mem://run",
		"--bbox", "36,44,-96,-84",
		"--var", "apcpsfc",
		"--steps", "3,1,2",
		"--out", filepath.Join(t.TempDir(), "total"),
		"--animate",
	)
	assert.ErrorIs(t, err, usecase.ErrStepsOutOfOrder)
	assert.Empty(t, h.runner.tools)
}

func TestParseBBox(t *testing.T) {
	box, err := parseBBox("41.5, 47.5, 266, 273.7")
	require.NoError(t, err)
	assert.Equal(t, domain.Lon360, box.Convention)
	assert.InDelta(t, 273.7, box.RightLon, 1e-9)

	box, err = parseBBox("41.5,47.5,-94,-86.3")
	require.NoError(t, err)
	assert.Equal(t, domain.LonSigned, box.Convention)

	_, err = parseBBox("47.5,41.5,-94,-86.3")
	assert.Error(t, err)
}
