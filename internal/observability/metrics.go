package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forecast_frames"

// Metrics holds the Prometheus counters and histograms for frame production.
type Metrics struct {
	FramesBuilt      *prometheus.CounterVec // labels: kind={plain,accumulated}
	FrameErrors      prometheus.Counter
	StepsAccumulated prometheus.Counter
	GridReadDuration prometheus.Histogram

	// Animation assembly.
	ToolDuration *prometheus.HistogramVec // labels: tool={convert,ffmpeg}
	ToolFailures *prometheus.CounterVec   // labels: tool={convert,ffmpeg}

	PipelineRuns *prometheus.CounterVec // labels: outcome={success,error}

	HTTPRequests *prometheus.CounterVec // labels: route, code
}

func newMetrics() *Metrics {
	return &Metrics{
		FramesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_built_total",
			Help:      "Frames emitted by the orchestrator, by kind.",
		}, []string{"kind"}),
		FrameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames that failed to build or render.",
		}),
		StepsAccumulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_accumulated_total",
			Help:      "Forecast steps folded into accumulation totals.",
		}),
		GridReadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_read_duration_seconds",
			Help:      "Duration of a single subgrid read from a dataset.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of external encoder invocations.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tool"}),
		ToolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_failures_total",
			Help:      "External encoder invocations that exited unsuccessfully.",
		}, []string{"tool"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with r.
func NewMetricsWith(r prometheus.Registerer) *Metrics {
	m := newMetrics()
	m.MustRegister(r)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many instances as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.FramesBuilt,
		m.FrameErrors,
		m.StepsAccumulated,
		m.GridReadDuration,
		m.ToolDuration,
		m.ToolFailures,
		m.PipelineRuns,
		m.HTTPRequests,
	)
}
