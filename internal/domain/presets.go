package domain

import (
	"sort"
	"strings"
)

// Preset is a named bounding box with the map scale it is drawn at.
type Preset struct {
	Name  string
	Box   BoundingBox
	Scale MapScale
}

// Built-in map views. Global models need their 0..360 variants.
var (
	Wisconsin = Preset{
		Name:  "WISCONSIN",
		Box:   BoundingBox{LowerLat: 41.5, UpperLat: 47.5, LeftLon: -94.0, RightLon: -86.3, Convention: LonSigned},
		Scale: ScaleLCCLow,
	}
	Midwest = Preset{
		Name:  "MIDWEST",
		Box:   BoundingBox{LowerLat: 37.0, UpperLat: 50.0, LeftLon: -105.0, RightLon: -82.0, Convention: LonSigned},
		Scale: ScaleLCCLow,
	}
	WisconsinGlobal = Preset{
		Name:  "WISCONSIN_GLOBAL",
		Box:   BoundingBox{LowerLat: 41.5, UpperLat: 47.5, LeftLon: 266.0, RightLon: 273.7, Convention: Lon360},
		Scale: ScaleLCCLow,
	}
	MidwestGlobal = Preset{
		Name:  "MIDWEST_GLOBAL",
		Box:   BoundingBox{LowerLat: 37.0, UpperLat: 50.0, LeftLon: 255.0, RightLon: 278.0, Convention: Lon360},
		Scale: ScaleLCCLow,
	}
	Local = Preset{
		Name:  "LOCAL",
		Box:   BoundingBox{LowerLat: 41.6, UpperLat: 44.4, LeftLon: -92.2, RightLon: -87.0, Convention: LonSigned},
		Scale: ScaleLCCIntermediate,
	}
)

// PresetSet is a case-insensitive registry of named map views.
type PresetSet map[string]Preset

// DefaultPresets returns a fresh set holding the built-in views.
func DefaultPresets() PresetSet {
	s := PresetSet{}
	for _, p := range []Preset{Wisconsin, Midwest, WisconsinGlobal, MidwestGlobal, Local} {
		s.Add(p)
	}
	return s
}

// Add registers or replaces a preset.
func (s PresetSet) Add(p Preset) {
	p.Name = strings.ToUpper(p.Name)
	s[p.Name] = p
}

// Get looks up a preset by name.
func (s PresetSet) Get(name string) (Preset, bool) {
	p, ok := s[strings.ToUpper(name)]
	return p, ok
}

// ForModel returns the preset variant matching a model's longitude convention.
// A signed view requested for a 0..360 model resolves to its "_GLOBAL" twin
// when one exists.
func (s PresetSet) ForModel(name string, m Model) (Preset, bool) {
	p, ok := s.Get(name)
	if !ok {
		return Preset{}, false
	}
	if p.Box.Convention == m.Convention {
		return p, true
	}
	if m.Convention == Lon360 {
		if g, ok := s.Get(p.Name + "_GLOBAL"); ok {
			return g, true
		}
	}
	return p, true
}

// Names returns the preset names in sorted order.
func (s PresetSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
