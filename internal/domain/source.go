package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultBaseURL is the NOMADS OPeNDAP root serving the supported models.
const DefaultBaseURL = "http://nomads.ncep.noaa.gov:9090/dods/"

const runDateLayout = "20060102"

// Model describes a supported forecast model and how its datasets are laid out.
type Model struct {
	ID          string
	Description string
	// Path builds the dataset path relative to the base URL.
	Path func(date, cycle string) string
	// Convention is the longitude convention of the model's grid.
	Convention LonConvention
	// AccumStride is the default step stride used for accumulations, matching
	// the model's native output interval.
	AccumStride int
}

var models = map[string]Model{
	"GFS": {
		ID:          "GFS",
		Description: "Global Forecast System 0.25 degree, 3-hourly",
		Path: func(d, c string) string {
			return "gfs_0p25/gfs" + d + "/gfs_0p25_" + c + "z"
		},
		Convention:  Lon360,
		AccumStride: 2,
	},
	"GFSH": {
		ID:          "GFSH",
		Description: "Global Forecast System 0.25 degree, hourly",
		Path: func(d, c string) string {
			return "gfs_0p25_1hr/gfs" + d + "/gfs_0p25_1hr_" + c + "z"
		},
		Convention:  Lon360,
		AccumStride: 6,
	},
	"ARW": {
		ID:          "ARW",
		Description: "High-resolution window, CONUS ARW",
		Path: func(d, c string) string {
			return "hiresw/hiresw" + d + "/hiresw_conusarw_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 1,
	},
	"NMM": {
		ID:          "NMM",
		Description: "High-resolution window, CONUS NMMB",
		Path: func(d, c string) string {
			return "hiresw/hiresw" + d + "/hiresw_conusnmmb_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 1,
	},
	"HRRR": {
		ID:          "HRRR",
		Description: "High-Resolution Rapid Refresh, surface",
		Path: func(d, c string) string {
			return "hrrr/hrrr" + d + "/hrrr_sfc_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 1,
	},
	"NARRE": {
		ID:          "NARRE",
		Description: "North American Rapid Refresh Ensemble mean",
		Path: func(d, c string) string {
			return "narre/narre" + d + "/narre_130_mean_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 1,
	},
	"NWW3": {
		ID:          "NWW3",
		Description: "NOAA WAVEWATCH III global",
		Path: func(d, c string) string {
			return "wave/nww3/nww3" + d + "/nww3" + d + "_" + c + "z"
		},
		Convention:  Lon360,
		AccumStride: 1,
	},
	"NAM3K": {
		ID:          "NAM3K",
		Description: "North American Mesoscale 3 km nest, hourly",
		Path: func(d, c string) string {
			return "nam/nam" + d + "/nam1hr_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 1,
	},
	"NAMNEST": {
		ID:          "NAMNEST",
		Description: "North American Mesoscale CONUS nest",
		Path: func(d, c string) string {
			return "nam/nam" + d + "/nam_conusnest_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 1,
	},
	"RAP": {
		ID:          "RAP",
		Description: "Rapid Refresh",
		Path: func(d, c string) string {
			return "rap/rap" + d + "/rap_" + c + "z"
		},
		Convention:  LonSigned,
		AccumStride: 3,
	},
}

// LookupModel returns the model registered under id (case-insensitive).
func LookupModel(id string) (Model, error) {
	m, ok := models[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Model{}, &UnknownModelError{Model: id}
	}
	return m, nil
}

// Models returns all supported models sorted by ID.
func Models() []Model {
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SourceResolver maps (model, date, cycle) to a dataset location.
// The zero value resolves against DefaultBaseURL.
type SourceResolver struct {
	BaseURL string
}

// Resolve returns the dataset location for a model run. It never touches the
// network and always yields the same output for the same inputs.
func (r SourceResolver) Resolve(modelID, date, cycle string) (string, error) {
	m, err := LookupModel(modelID)
	if err != nil {
		return "", err
	}
	if err := ValidateRunDate(date); err != nil {
		return "", err
	}
	if err := ValidateCycle(cycle); err != nil {
		return "", err
	}

	base := r.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + m.Path(date, cycle), nil
}

// ResolveSource resolves against the default NOMADS base URL.
func ResolveSource(modelID, date, cycle string) (string, error) {
	return SourceResolver{}.Resolve(modelID, date, cycle)
}

// ValidateRunDate checks for an 8-digit YYYYMMDD calendar date.
func ValidateRunDate(date string) error {
	if len(date) != 8 || !isDigits(date) {
		return fmt.Errorf("%w: date %q: expected YYYYMMDD", ErrInvalidRun, date)
	}
	if _, err := time.Parse(runDateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q: %v", ErrInvalidRun, date, err)
	}
	return nil
}

// ValidateCycle checks for a 2-digit UTC cycle hour (00-23).
func ValidateCycle(cycle string) error {
	if len(cycle) != 2 || !isDigits(cycle) {
		return fmt.Errorf("%w: cycle %q: expected two-digit hour", ErrInvalidRun, cycle)
	}
	if cycle > "23" {
		return fmt.Errorf("%w: cycle %q: hour must be 00-23", ErrInvalidRun, cycle)
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
