package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Palette maps values to filled-contour colors. A value at or above
// Levels[k] and below Levels[k+1] takes Colors[k]; values below Levels[0]
// are left transparent.
type Palette struct {
	Name   string
	Levels []float64
	Colors []color.RGBA
}

// ColorFor returns the band color for v.
func (p Palette) ColorFor(v float64) (color.RGBA, bool) {
	if len(p.Levels) == 0 || math.IsNaN(v) || v < p.Levels[0] {
		return color.RGBA{}, false
	}
	k := sort.SearchFloat64s(p.Levels, v)
	if k == len(p.Levels) || p.Levels[k] != v {
		k--
	}
	if k >= len(p.Colors) {
		k = len(p.Colors) - 1
	}
	return p.Colors[k], true
}

// Validate checks that levels ascend and every band has a color.
func (p Palette) Validate() error {
	if len(p.Levels) == 0 {
		return fmt.Errorf("palette %s has no levels", p.Name)
	}
	if !sort.Float64sAreSorted(p.Levels) {
		return fmt.Errorf("palette %s levels are not ascending", p.Name)
	}
	if len(p.Colors) == 0 {
		return fmt.Errorf("palette %s has no colors", p.Name)
	}
	return nil
}

// QPF colors precipitation amounts in inches.
var QPF = Palette{
	Name:   "qpf",
	Levels: []float64{0.01, 0.05, 0.10, 0.25, 0.50, 0.75, 1.00, 2.00, 5.00},
	Colors: mustHexColors("#edf8fb", "#b2e2e2", "#66c2a4", "#238b45", "#fef0d9", "#fdcc8a", "#fc8d59", "#e34a33", "#b30000"),
}

// Snow colors snow depth in inches.
var Snow = Palette{
	Name:   "snow",
	Levels: []float64{0.1, 0.5, 1.0, 3.0, 6.0, 9.0, 12.0, 18.0, 24.0},
	Colors: mustHexColors("#f1eef6", "#bdc9e1", "#74a9cf", "#0570b0", "#feebe2", "#fbb4b9", "#f768a1", "#c51b8a", "#7a0177"),
}

// categorical returns a single-band palette for a yes/no precipitation type field.
func categorical(name, hex string) Palette {
	return Palette{
		Name:   name,
		Levels: []float64{0.25, 1},
		Colors: mustHexColors(hex),
	}
}

// PrecipTypeLayers draws rain, snow, sleet and freezing rain categories.
func PrecipTypeLayers() []Layer {
	return []Layer{
		{Variable: "crainsfc", Palette: categorical("rain", "#00b300")},
		{Variable: "csnowsfc", Palette: categorical("snow", "#8080ff")},
		{Variable: "cicepsfc", Palette: categorical("sleet", "#ffcc80")},
		{Variable: "cfrzrsfc", Palette: categorical("freezing rain", "#ff80bf")},
	}
}

// PaletteByName returns a built-in palette.
func PaletteByName(name string) (Palette, error) {
	switch strings.ToLower(name) {
	case "qpf", "rain":
		return QPF, nil
	case "snow":
		return Snow, nil
	}
	return Palette{}, fmt.Errorf("unknown palette %q", name)
}

func mustHexColors(hex ...string) []color.RGBA {
	out := make([]color.RGBA, len(hex))
	for i, h := range hex {
		c, err := ParseHexColor(h)
		if err != nil {
			panic(err)
		}
		out[i] = c
	}
	return out
}

// ParseHexColor parses "#rrggbb" into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
