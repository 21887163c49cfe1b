package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"go.ngs.io/forecast-frames/internal/domain"
)

// PresetFile is the TOML layout of a domains file:
//
//	[[domain]]
//	name = "CHICAGO"
//	lower_lat = 41.0
//	upper_lat = 42.5
//	left_lon = -88.5
//	right_lon = -87.0
//	convention = "signed"  # or "360"
//	scale = "intermediate" # or "low"
type PresetFile struct {
	Domains []PresetEntry `toml:"domain"`
}

// PresetEntry is one named bounding box.
type PresetEntry struct {
	Name       string  `toml:"name"`
	LowerLat   float64 `toml:"lower_lat"`
	UpperLat   float64 `toml:"upper_lat"`
	LeftLon    float64 `toml:"left_lon"`
	RightLon   float64 `toml:"right_lon"`
	Convention string  `toml:"convention"`
	Scale      string  `toml:"scale"`
}

// LoadPresetFile reads and parses a TOML domains file.
func LoadPresetFile(path string) (PresetFile, error) {
	var pf PresetFile
	b, err := os.ReadFile(path)
	if err != nil {
		return pf, fmt.Errorf("failed to read domains file: %w", err)
	}
	if err := toml.Unmarshal(b, &pf); err != nil {
		return pf, fmt.Errorf("failed to parse domains file %s: %w", path, err)
	}
	return pf, nil
}

// MergePresetFile adds every entry of the file at path to presets,
// replacing built-ins with the same name.
func MergePresetFile(presets domain.PresetSet, path string) error {
	pf, err := LoadPresetFile(path)
	if err != nil {
		return err
	}
	for _, e := range pf.Domains {
		p, err := e.Preset()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		presets.Add(p)
	}
	return nil
}

// Preset converts an entry and validates its box.
func (e PresetEntry) Preset() (domain.Preset, error) {
	if strings.TrimSpace(e.Name) == "" {
		return domain.Preset{}, fmt.Errorf("domain entry without a name")
	}
	conv, err := parseConvention(e.Convention)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("domain %s: %w", e.Name, err)
	}
	scale, err := parseScale(e.Scale)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("domain %s: %w", e.Name, err)
	}
	box := domain.BoundingBox{
		LowerLat:   e.LowerLat,
		UpperLat:   e.UpperLat,
		LeftLon:    e.LeftLon,
		RightLon:   e.RightLon,
		Convention: conv,
	}
	if err := box.Validate(); err != nil {
		return domain.Preset{}, fmt.Errorf("domain %s: %w", e.Name, err)
	}
	return domain.Preset{Name: e.Name, Box: box, Scale: scale}, nil
}

func parseConvention(s string) (domain.LonConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "signed", "-180..180":
		return domain.LonSigned, nil
	case "360", "0..360", "global":
		return domain.Lon360, nil
	}
	return domain.LonSigned, fmt.Errorf("unknown longitude convention %q", s)
}

func parseScale(s string) (domain.MapScale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intermediate":
		return domain.ScaleLCCIntermediate, nil
	case "low":
		return domain.ScaleLCCLow, nil
	}
	return domain.MapScale{}, fmt.Errorf("unknown map scale %q", s)
}
