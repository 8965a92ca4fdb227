package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the economy's Prometheus collectors on a private registry.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	transactions    *prometheus.CounterVec
	volume          *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	persistPending  prometheus.Gauge
	listings        prometheus.Gauge
	requests        prometheus.Gauge
	mailboxItems    prometheus.Gauge
	eventsDropped   prometheus.Counter
	httpDuration    *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "economy",
			Name:      "transactions_total",
			Help:      "Committed ledger movements by kind.",
		}, []string{"kind"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "economy",
			Name:      "currency_moved_total",
			Help:      "Currency moved by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "economy",
			Name:      "rejections_total",
			Help:      "Rejected operations by error kind.",
		}, []string{"op", "kind"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "economy",
			Name:      "persistence_failures_total",
			Help:      "Failed durable writes by concern.",
		}, []string{"concern"}),
		persistPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "economy",
			Name:      "persistence_pending",
			Help:      "Concerns whose latest snapshot is not yet durable.",
		}),
		listings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "economy",
			Name:      "listings_active",
			Help:      "Active sell listings.",
		}),
		requests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "economy",
			Name:      "requests_active",
			Help:      "Active buy requests.",
		}),
		mailboxItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "economy",
			Name:      "mailbox_items",
			Help:      "Items waiting in mailboxes.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "economy",
			Name:      "events_dropped_total",
			Help:      "Events not delivered to slow subscribers.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "economy",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transactions, m.volume, m.rejections,
		m.persistFailures, m.persistPending,
		m.listings, m.requests, m.mailboxItems,
		m.eventsDropped, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Transaction counts a committed movement of amount.
func (m *Metrics) Transaction(kind string, amount int64) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind).Inc()
	if amount > 0 {
		m.volume.WithLabelValues(kind).Add(float64(amount))
	}
}

// Rejected counts an operation refused with an error kind.
func (m *Metrics) Rejected(op, kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op, kind).Inc()
}

// PersistFailed counts a failed write of concern.
func (m *Metrics) PersistFailed(concern string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(concern).Inc()
}

// SetPersistPending records how many concerns are waiting for a retry.
func (m *Metrics) SetPersistPending(n int) {
	if m == nil {
		return
	}
	m.persistPending.Set(float64(n))
}

// SetListings records the active listing count.
func (m *Metrics) SetListings(n int) {
	if m == nil {
		return
	}
	m.listings.Set(float64(n))
}

// SetRequests records the active request count.
func (m *Metrics) SetRequests(n int) {
	if m == nil {
		return
	}
	m.requests.Set(float64(n))
}

// SetMailboxItems records the number of queued deliveries.
func (m *Metrics) SetMailboxItems(n int) {
	if m == nil {
		return
	}
	m.mailboxItems.Set(float64(n))
}

// EventDropped counts an undelivered event.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
