package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"go.ngs.io/forecast-frames/internal/domain"
)

// ServerConfig is the HTTP server configuration read from the environment.
type ServerConfig struct {
	Port               string   `env:"PORT" envDefault:"8080"`
	DataDir            string   `env:"DATA_DIR" envDefault:"./data"`
	BaseURL            string   `env:"NOMADS_BASE_URL" envDefault:"http://nomads.ncep.noaa.gov:9090/dods/"`
	DomainsFile        string   `env:"DOMAINS_FILE"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	TimeZone           string   `env:"TIME_ZONE" envDefault:"America/Chicago"`
	Debug              bool     `env:"DEBUG" envDefault:"false"`
}

// LoadServerConfig parses ServerConfig from the environment.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Location loads the configured time zone.
func (c ServerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Resolver returns a source resolver for the configured base URL.
func (c ServerConfig) Resolver() domain.SourceResolver {
	return domain.SourceResolver{BaseURL: c.BaseURL}
}

// Presets returns the built-in presets merged with DomainsFile, if set.
func (c ServerConfig) Presets() (domain.PresetSet, error) {
	presets := domain.DefaultPresets()
	if c.DomainsFile == "" {
		return presets, nil
	}
	if err := MergePresetFile(presets, c.DomainsFile); err != nil {
		return nil, err
	}
	return presets, nil
}
