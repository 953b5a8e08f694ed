// Package metrics exposes Prometheus instrumentation for policy
// evaluation, human feedback, the learning loop, and advisor calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/lodestar/internal/evaluator"
)

const namespace = "lodestar"

// Metrics holds the collectors on a private registry so that separate
// instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	evaluations     *prometheus.CounterVec
	ruleTriggers    *prometheus.CounterVec
	feedback        *prometheus.CounterVec
	suggestions     *prometheus.CounterVec
	validationRate  prometheus.Histogram
	policyVersions  prometheus.Counter
	advisorCalls    *prometheus.CounterVec
	advisorDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Policy evaluations by policy version, final category, and whether the category was overridden.",
			},
			[]string{"policy_version", "category", "overridden"},
		),
		ruleTriggers: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_triggers_total",
				Help:      "Rules that matched during evaluation, by rule id and action type.",
			},
			[]string{"rule_id", "action"},
		),
		feedback: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_total",
				Help:      "Human feedback on decisions, by kind (confirmed or corrected).",
			},
			[]string{"kind"},
		),
		suggestions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "suggestions_total",
				Help:      "Suggestion lifecycle transitions by resulting status.",
			},
			[]string{"status"},
		),
		validationRate: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_improvement_rate_percent",
				Help:      "Improvement rate of counterfactual validation runs.",
				Buckets:   prometheus.LinearBuckets(-100, 25, 9),
			},
		),
		policyVersions: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_versions_written_total",
				Help:      "Policy versions written to the store.",
			},
		),
		advisorCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advisor_calls_total",
				Help:      "Model calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		advisorDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advisor_call_duration_seconds",
				Help:      "Latency of model calls by operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEvaluation records an evaluation and each rule it triggered.
func (m *Metrics) ObserveEvaluation(r evaluator.Result) {
	m.evaluations.WithLabelValues(
		r.PolicyVersion,
		string(r.FinalClassification.Category),
		strconv.FormatBool(r.Overridden),
	).Inc()
	for _, t := range r.TriggeredRules {
		m.ruleTriggers.WithLabelValues(t.RuleID, string(t.Action.Type)).Inc()
	}
}

// ObserveFeedback records a confirmation or correction.
func (m *Metrics) ObserveFeedback(kind string) {
	m.feedback.WithLabelValues(kind).Inc()
}

// ObserveSuggestions records suggestions reaching status.
func (m *Metrics) ObserveSuggestions(status string, n int) {
	m.suggestions.WithLabelValues(status).Add(float64(n))
}

// ObserveValidation records a validation run's improvement rate.
func (m *Metrics) ObserveValidation(ratePercent float64) {
	m.validationRate.Observe(ratePercent)
}

// ObservePolicyVersion records a new policy version.
func (m *Metrics) ObservePolicyVersion() {
	m.policyVersions.Inc()
}

// ObserveAdvisorCall records a model call's outcome and latency.
func (m *Metrics) ObserveAdvisorCall(operation string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.advisorCalls.WithLabelValues(operation, outcome).Inc()
	m.advisorDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
