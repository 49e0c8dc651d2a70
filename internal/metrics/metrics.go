package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeReplay  = "replay"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
)

// Collector owns its registry so tests can construct as many as they like.
type Collector struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	replays    *prometheus.CounterVec
	notified   *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_ledger_operations_total",
			Help: "Money-movement operations by outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_ledger_operation_duration_seconds",
			Help:    "Wall time of a money-movement operation including its database transaction",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		replays: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_idempotent_replays_total",
			Help: "Requests answered from a previously recorded transaction",
		}, []string{"operation"}),
		notified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_notifications_total",
			Help: "Notification attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (c *Collector) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if outcome == OutcomeReplay {
		c.replays.WithLabelValues(operation).Inc()
	}
}

func (c *Collector) ObserveNotification(outcome string) {
	c.notified.WithLabelValues(outcome).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
