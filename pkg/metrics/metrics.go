// Package metrics exposes relay activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tgrelay"

// Message kinds recorded by MessageHandled.
const (
	KindText    = "text"
	KindStart   = "start"
	KindReset   = "reset"
	KindIgnored = "ignored"
)

// Completion statuses recorded by CompletionFinished.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Collector owns a registry and the relay's metrics.
type Collector struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	completions *prometheus.CounterVec
	duration    prometheus.Histogram
	publishes   *prometheus.CounterVec
}

// NewCollector registers the relay metrics on a fresh registry. conversations
// reports the number of live conversations on every scrape and may be nil.
func NewCollector(conversations func() int) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Incoming chat messages by kind.",
		}, []string{"kind"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_attempts_total",
			Help:      "Completion API attempts by outcome.",
		}, []string{"outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Completion calls by final status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Wall time of completion calls including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 240},
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_events_total",
			Help:      "Turn events handed to the event publisher by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(c.messages, c.attempts, c.completions, c.duration, c.publishes)

	if conversations != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations",
			Help:      "Conversations currently held in memory.",
		}, func() float64 { return float64(conversations()) }))
	}

	return c
}

// MessageHandled counts one incoming message of the given kind.
func (c *Collector) MessageHandled(kind string) {
	c.messages.WithLabelValues(kind).Inc()
}

// ObserveAttempt counts one completion attempt. Its signature matches the
// completion client's observer hook.
func (c *Collector) ObserveAttempt(_ int, err error, _ time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.attempts.WithLabelValues(outcome).Inc()
}

// CompletionFinished records the final status and duration of a completion.
func (c *Collector) CompletionFinished(status string, elapsed time.Duration) {
	c.completions.WithLabelValues(status).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// EventPublished counts a turn event publish.
func (c *Collector) EventPublished(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.publishes.WithLabelValues(outcome).Inc()
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
