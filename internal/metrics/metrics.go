// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contractor"

// Metrics uses a private registry so that CLI runs can push exactly these
// series to a Pushgateway. All methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	generationAttempts *prometheus.CounterVec
	generationResults  *prometheus.CounterVec
	providerDuration   *prometheus.HistogramVec
	providerTokens     *prometheus.HistogramVec
	compileTotal       *prometheus.CounterVec
	deployTotal        *prometheus.CounterVec
	deployRounds       prometheus.Histogram
	auditDropped       *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		generationAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_attempts_total",
				Help:      "Generation attempts, partitioned by provider, model and outcome.",
			},
			[]string{"provider", "model", "outcome"},
		),
		generationResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_results_total",
				Help:      "Finished generation requests by outcome.",
			},
			[]string{"provider", "outcome"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Latency of text-generation provider calls.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"provider", "model"},
		),
		providerTokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_tokens",
				Help:      "Tokens per provider call.",
				Buckets:   prometheus.LinearBuckets(250, 250, 16),
			},
			[]string{"provider", "model", "kind"},
		),
		compileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_total",
				Help:      "Compilation requests by mode and result (ok or error kind).",
			},
			[]string{"mode", "result"},
		),
		deployTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploy_total",
				Help:      "Deployments by result (confirmed or error kind).",
			},
			[]string{"result"},
		),
		deployRounds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_confirmation_rounds",
				Help:      "Rounds waited between submission and confirmation.",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
		auditDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_records_dropped_total",
				Help:      "Audit records a sink failed to write.",
			},
			[]string{"sink"},
		),
	}
}

// WithRuntimeCollectors adds Go and process collectors, for long-running servers.
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	if m == nil {
		return m
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) GenerationAttempt(provider, model, outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(provider, model, outcome).Inc()
}

func (m *Metrics) GenerationResult(provider, outcome string) {
	if m == nil {
		return
	}
	m.generationResults.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ProviderCall(provider, model string, seconds float64, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.providerDuration.WithLabelValues(provider, model).Observe(seconds)
	if promptTokens > 0 {
		m.providerTokens.WithLabelValues(provider, model, "prompt").Observe(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.providerTokens.WithLabelValues(provider, model, "completion").Observe(float64(completionTokens))
	}
}

func (m *Metrics) Compile(mode, result string) {
	if m == nil {
		return
	}
	m.compileTotal.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) Deploy(result string, rounds uint64) {
	if m == nil {
		return
	}
	m.deployTotal.WithLabelValues(result).Inc()
	if rounds > 0 {
		m.deployRounds.Observe(float64(rounds))
	}
}

func (m *Metrics) AuditDropped(sink string) {
	if m == nil {
		return
	}
	m.auditDropped.WithLabelValues(sink).Inc()
}
