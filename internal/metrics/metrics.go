package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goal_tracker"

// Collector owns a private registry so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	ActionsTotal     *prometheus.CounterVec
	MagicLinksTotal  *prometheus.CounterVec
	MailBreakerState prometheus.Gauge
	GateRedirects    *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		ActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "total",
			Help:      "Action runs by name and outcome code (ok on success).",
		}, []string{"action", "code"}),

		MagicLinksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "magic_links_total",
			Help:      "Magic links by result (sent, mail_failed, rate_limited, redeemed, rejected).",
		}, []string{"result"}),

		MailBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "breaker_state",
			Help:      "Mail circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),

		GateRedirects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "gate_redirects_total",
			Help:      "Requests turned away by the session gate, by target.",
		}, []string{"target"}),
	}
}

// WatchDB exports connection pool statistics for db.
func (c *Collector) WatchDB(db *sql.DB) {
	c.registry.MustRegister(collectors.NewDBStatsCollector(db, "goals"))
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
