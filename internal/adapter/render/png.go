// Package render draws frames as raster images.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.ngs.io/forecast-frames/internal/usecase"
)

// Layer draws one frame array with a palette.
type Layer struct {
	// Variable selects the array; empty means the frame's first variable.
	Variable string
	Palette  Palette
	// Scale multiplies values before the palette lookup, e.g. 1/25.4 for mm
	// to inches. Zero means 1.
	Scale float64
}

// PNG renders frames as nearest-cell rasters, north up, with each grid
// cell drawn as a CellSize square. Later layers paint over earlier ones.
type PNG struct {
	Layers     []Layer
	CellSize   int
	Background color.RGBA
	// Metadata writes <artifact>.json with the label and map geometry.
	Metadata bool
}

var _ usecase.Renderer = (*PNG)(nil)

// NewPNG returns a renderer for a single palette.
func NewPNG(p Palette, scale float64) *PNG {
	return &PNG{
		Layers:     []Layer{{Palette: p, Scale: scale}},
		CellSize:   4,
		Background: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	}
}

// Render writes frame.ArtifactPath, replacing any previous artifact.
func (r *PNG) Render(ctx context.Context, frame usecase.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frame.Arrays) == 0 {
		return fmt.Errorf("frame %d has no arrays", frame.Step)
	}
	if len(r.Layers) == 0 {
		return fmt.Errorf("renderer has no layers")
	}

	img, err := r.draw(frame)
	if err != nil {
		return err
	}

	//nolint:gosec // G301: artifact directories are world-readable.
	if err := os.MkdirAll(filepath.Dir(frame.ArtifactPath), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	f, err := os.Create(frame.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", frame.ArtifactPath, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", frame.ArtifactPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", frame.ArtifactPath, err)
	}

	if r.Metadata {
		return writeMetadata(frame)
	}
	return nil
}

func (r *PNG) draw(frame usecase.Frame) (*image.RGBA, error) {
	first := frame.Variables()[0]
	rows, cols := frame.Arrays[first].Dims()
	cell := r.CellSize
	if cell < 1 {
		cell = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	for y := 0; y < rows*cell; y++ {
		for x := 0; x < cols*cell; x++ {
			img.SetRGBA(x, y, r.Background)
		}
	}

	flip := northUp(frame)
	for _, layer := range r.Layers {
		name := layer.Variable
		if name == "" {
			name = first
		}
		grid, ok := frame.Arrays[name]
		if !ok {
			return nil, fmt.Errorf("frame %d has no array %q", frame.Step, name)
		}
		if lr, lc := grid.Dims(); lr != rows || lc != cols {
			return nil, fmt.Errorf("array %q is %dx%d, expected %dx%d", name, lr, lc, rows, cols)
		}
		scale := layer.Scale
		if scale == 0 {
			scale = 1
		}
		for i := 0; i < rows; i++ {
			row := i
			if flip {
				row = rows - 1 - i
			}
			for j := 0; j < cols; j++ {
				c, ok := layer.Palette.ColorFor(grid.At(row, j) * scale)
				if !ok {
					continue
				}
				fillCell(img, j*cell, i*cell, cell, c)
			}
		}
	}
	return img, nil
}

// northUp reports whether grid rows run south to north and must be flipped.
func northUp(frame usecase.Frame) bool {
	if frame.Domain == nil || len(frame.Domain.Lats) < 2 {
		return true
	}
	lats := frame.Domain.Lats
	return lats[0] < lats[len(lats)-1]
}

func fillCell(img *image.RGBA, x0, y0, size int, c color.RGBA) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

type metadata struct {
	Step      int     `json:"step"`
	Label     string  `json:"label"`
	Title     string  `json:"title,omitempty"`
	ValidUTC  string  `json:"valid_utc"`
	MapWidth  float64 `json:"map_width"`
	MapHeight float64 `json:"map_height"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	LowerLat  float64 `json:"lower_lat"`
	UpperLat  float64 `json:"upper_lat"`
	LeftLon   float64 `json:"left_lon"`
	RightLon  float64 `json:"right_lon"`
}

func writeMetadata(frame usecase.Frame) error {
	m := metadata{
		Step:     frame.Step,
		Label:    frame.Label,
		Title:    frame.Title,
		ValidUTC: frame.ValidTime.UTC.Format("2006-01-02T15:04:05Z"),
	}
	if d := frame.Domain; d != nil {
		m.MapWidth, m.MapHeight = d.MapWidth, d.MapHeight
		m.CenterLat, m.CenterLon = d.CenterLat, d.CenterLon
		m.LowerLat, m.UpperLat = d.Box.LowerLat, d.Box.UpperLat
		m.LeftLon, m.RightLon = d.Box.LeftLon, d.Box.RightLon
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	path := strings.TrimSuffix(frame.ArtifactPath, filepath.Ext(frame.ArtifactPath)) + ".json"
	//nolint:gosec // G306: metadata is not sensitive.
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
