// Package metrics records run statistics in a Prometheus registry and
// exports them in the node_exporter textfile format.
package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmylchreest/grounding/internal/version"
	"github.com/jmylchreest/grounding/pkg/evaluator"
	"github.com/jmylchreest/grounding/pkg/pipeline"
	"github.com/jmylchreest/grounding/pkg/search"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	SearchCalls    *prometheus.CounterVec
	SearchTokens   *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	Rows           *prometheus.CounterVec
	URLs           *prometheus.CounterVec
}

// New creates and registers all collectors. runID is attached as a const
// label so exports from different runs can be told apart.
func New(runID string) *Metrics {
	labels := prometheus.Labels{}
	if runID != "" {
		labels["run_id"] = runID
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SearchCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grounding",
			Name:        "search_calls_total",
			Help:        "LLM backend calls by backend, kind and outcome.",
			ConstLabels: labels,
		}, []string{"backend", "kind", "outcome"}),
		SearchTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grounding",
			Name:        "search_tokens_total",
			Help:        "Tokens reported by the backend, by direction.",
			ConstLabels: labels,
		}, []string{"backend", "direction"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "grounding",
			Name:        "search_call_duration_seconds",
			Help:        "LLM backend call latency.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			ConstLabels: labels,
		}, []string{"backend", "kind"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grounding",
			Name:        "rows_total",
			Help:        "Extraction rows processed, by extractor and outcome.",
			ConstLabels: labels,
		}, []string{"extractor", "outcome"}),
		URLs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "grounding",
			Name:        "urls_evaluated_total",
			Help:        "Reference URLs evaluated, by accessibility and judgement.",
			ConstLabels: labels,
		}, []string{"accessible", "correct"}),
	}

	buildLabels := prometheus.Labels{}
	for k, v := range labels {
		buildLabels[k] = v
	}
	for k, v := range version.Labels() {
		buildLabels[k] = v
	}
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "grounding",
		Name:        "build_info",
		Help:        "Build metadata of the binary that produced these metrics.",
		ConstLabels: buildLabels,
	})
	buildInfo.Set(1)

	m.registry.MustRegister(buildInfo, m.SearchCalls, m.SearchTokens, m.SearchDuration, m.Rows, m.URLs)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnCall implements search.Observer.
func (m *Metrics) OnCall(_ context.Context, e search.CallEvent) {
	outcome := "success"
	if e.Error != nil {
		outcome = "error"
	}
	m.SearchCalls.WithLabelValues(e.Backend, e.Kind, outcome).Inc()
	m.SearchDuration.WithLabelValues(e.Backend, e.Kind).Observe(e.Duration.Seconds())
	if e.Usage.InputTokens > 0 {
		m.SearchTokens.WithLabelValues(e.Backend, "input").Add(float64(e.Usage.InputTokens))
	}
	if e.Usage.OutputTokens > 0 {
		m.SearchTokens.WithLabelValues(e.Backend, "output").Add(float64(e.Usage.OutputTokens))
	}
}

// RowHook returns a pipeline row hook counting rows for extractor.
func (m *Metrics) RowHook(extractor string) func(pipeline.RowEvent) {
	return func(e pipeline.RowEvent) {
		outcome := "success"
		if e.Err != nil {
			outcome = "error"
		}
		m.Rows.WithLabelValues(extractor, outcome).Inc()
	}
}

// ResultHook returns an evaluator hook counting evaluated URLs.
func (m *Metrics) ResultHook() func(evaluator.ValidationResult) {
	return func(r evaluator.ValidationResult) {
		correct := "unknown"
		if r.HasCorrectInfo != nil {
			correct = strconv.FormatBool(*r.HasCorrectInfo)
		}
		m.URLs.WithLabelValues(strconv.FormatBool(r.Accessible), correct).Inc()
	}
}

// WriteFile writes all metrics to path in the textfile format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

var _ search.Observer = (*Metrics)(nil)
