// Package main provides the forecast frames HTTP server.
package main

import (
	"flag"
	"fmt"
	"os"
	_ "time/tzdata"

	"go.ngs.io/forecast-frames/internal/adapter/store/ncfile"
	"go.ngs.io/forecast-frames/internal/config"
	httpHandler "go.ngs.io/forecast-frames/internal/http"
	"go.ngs.io/forecast-frames/internal/observability"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("forecast-frames version %s\n", version)
		return
	}

	// Load configuration from environment.
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	zone, err := cfg.Location()
	if err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}
	presets, err := cfg.Presets()
	if err != nil {
		logger.Fatalw("failed to load domains", "path", cfg.DomainsFile, "error", err)
	}

	logger.Infow("starting forecast frames server",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"base_url", cfg.BaseURL,
		"time_zone", zone.String(),
		"domains", len(presets),
	)

	metrics := observability.NewMetrics()
	handler := httpHandler.NewHandler(httpHandler.HandlerConfig{
		Resolver: cfg.Resolver(),
		Opener:   ncfile.Opener(ncfile.DefaultConfig()),
		Presets:  presets,
		DataDir:  cfg.DataDir,
		Zone:     zone,
		Logger:   logger,
		Metrics:  metrics,
	})

	// Setup router.
	router := httpHandler.SetupRouter(handler, httpHandler.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metrics,
	})

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Infow("server listening",
		"addr", addr,
		"health", fmt.Sprintf("http://localhost:%s/health", cfg.Port),
	)
	if err := router.Run(addr); err != nil {
		logger.Fatalw("failed to start server", "error", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Forecast Frames Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  forecast-frames [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  DATA_DIR                Directory datasets are served from (default: ./data)")
	fmt.Println("  NOMADS_BASE_URL         OPeNDAP root used to resolve model runs")
	fmt.Println("  DOMAINS_FILE            TOML file with extra named domains (optional)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  TIME_ZONE               Zone used for frame labels (default: America/Chicago)")
	fmt.Println("  DEBUG                   Enable development logging (default: false)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  forecast-frames")
	fmt.Println()
	fmt.Println("  # Start server on custom port")
	fmt.Println("  PORT=3000 forecast-frames")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                    Health check")
	fmt.Println("  GET /v1/models                 Supported forecast models")
	fmt.Println("  GET /v1/sources                Resolve a model run to its dataset URL")
	fmt.Println("  GET /v1/domains[/:name]        Named map domains")
	fmt.Println("  GET /v1/timeaxis               Decoded time axis of a dataset under DATA_DIR")
	fmt.Println("  GET /v1/sample                 Interpolated point value from a dataset")
	fmt.Println("  GET /metrics                   Prometheus metrics")
	fmt.Println()
}
