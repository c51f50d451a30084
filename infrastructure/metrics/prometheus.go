/*
Package metrics Prometheus instruments for the intent engine.
*/
package metrics

import (
	"net/http"
	"time"

	"factoryops/domain/intent"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "factoryops"

// Prometheus Engine metrics on a private registry
type Prometheus struct {
	registry *prometheus.Registry

	outcomes      *prometheus.CounterVec
	validations   *prometheus.HistogramVec
	degraded      *prometheus.CounterVec
	tokensIssued  *prometheus.CounterVec
	tokensSettled *prometheus.CounterVec
}

// NewPrometheus registers every instrument plus the Go and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "outcomes_total",
			Help:      "Dispatched intents by category and outcome status.",
		}, []string{"category", "status"}),
		validations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "duration_seconds",
			Help:      "Rule evaluation latency by rule group and result.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 3},
		}, []string{"group", "result"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "degraded_total",
			Help:      "Evaluator failures decided by the validation policy.",
		}, []string{"group", "policy"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "issued_total",
			Help:      "Preview tokens issued, split by whether they were persisted.",
		}, []string{"kind"}),
		tokensSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "confirmations_total",
			Help:      "Confirmation attempts by result.",
		}, []string{"result"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.outcomes, p.validations, p.degraded, p.tokensIssued, p.tokensSettled,
	)
	return p
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) ObserveOutcome(category intent.Category, status intent.Status) {
	p.outcomes.WithLabelValues(string(category), string(status)).Inc()
}

func (p *Prometheus) ObserveValidation(group, result string, took time.Duration) {
	p.validations.WithLabelValues(group, result).Observe(took.Seconds())
}

func (p *Prometheus) ValidationDegraded(group string, policy intent.ValidationPolicy) {
	p.degraded.WithLabelValues(group, string(policy)).Inc()
}

func (p *Prometheus) TokenIssued(ephemeral bool) {
	kind := "persisted"
	if ephemeral {
		kind = "ephemeral"
	}
	p.tokensIssued.WithLabelValues(kind).Inc()
}

func (p *Prometheus) TokenSettled(result string) {
	p.tokensSettled.WithLabelValues(result).Inc()
}
