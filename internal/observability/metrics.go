package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// MetricsRecorder records stage outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Metrics holds the per-run Prometheus collectors on a private registry. A
// batch run has no scrape endpoint, so metrics leave the process through a
// node_exporter textfile or a Pushgateway.
type Metrics struct {
	registry    *prometheus.Registry
	stage       *prometheus.HistogramVec
	stageTotal  *prometheus.CounterVec
	rows        *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
	runs        *prometheus.CounterVec
}

// NewMetrics registers the trackrecon collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trackrecon",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trackrecon",
			Name:      "stage_results_total",
			Help:      "Stage outcomes by status.",
		}, []string{"stage", "status"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trackrecon",
			Name:      "table_rows",
			Help:      "Row counts of the tables produced by the last run.",
		}, []string{"table"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trackrecon",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trackrecon",
			Name:      "runs_total",
			Help:      "Completed runs by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.stage, m.stageTotal, m.rows, m.lastSuccess, m.runs)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe implements MetricsRecorder.
func (m *Metrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	m.stage.WithLabelValues(operation).Observe(duration.Seconds())
	m.stageTotal.WithLabelValues(operation, status(success)).Inc()
}

// SetRows records the size of a produced table.
func (m *Metrics) SetRows(table string, n int) {
	m.rows.WithLabelValues(table).Set(float64(n))
}

// RunFinished counts the run and stamps the success time.
func (m *Metrics) RunFinished(success bool, at time.Time) {
	m.runs.WithLabelValues(status(success)).Inc()
	if success {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// ExportConfig names the metric sinks. Empty fields are skipped.
type ExportConfig struct {
	TextfilePath   string
	PushgatewayURL string
	Job            string
	// Grouping labels the pushed group, e.g. {"mode": "sheets"}.
	Grouping map[string]string
}

// Export writes the registry to the configured sinks.
func (m *Metrics) Export(ctx context.Context, cfg ExportConfig) error {
	if cfg.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(cfg.TextfilePath, m.registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if cfg.PushgatewayURL != "" {
		job := cfg.Job
		if job == "" {
			job = "trackrecon"
		}
		p := push.New(cfg.PushgatewayURL, job).Gatherer(m.registry)
		for k, v := range cfg.Grouping {
			p = p.Grouping(k, v)
		}
		if err := p.PushContext(ctx); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
	}
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// NopMetrics discards observations.
type NopMetrics struct{}

// Observe implements MetricsRecorder.
func (NopMetrics) Observe(context.Context, string, bool, time.Duration) {}
