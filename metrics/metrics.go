// Package metrics exports registry and timebase activity as Prometheus
// metrics.
//
// A Collector subscribes to the observer hooks of idmap.Registry and
// timebase.Manager. Metrics are registered on the Registerer passed to New
// rather than the global default, so several OSAL instances (and tests)
// can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/timebase"
)

const namespace = "osal"

// Collector turns observer events into Prometheus metrics.
type Collector struct {
	allocated  *prometheus.CounterVec
	deleted    *prometheus.CounterVec
	active     *prometheus.GaugeVec
	contention *prometheus.CounterVec
	inUse      *prometheus.CounterVec

	ticks     *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	backlog   *prometheus.CounterVec
	spins     *prometheus.CounterVec
}

var (
	_ idmap.Observer    = (*Collector)(nil)
	_ timebase.Observer = (*Collector)(nil)
)

// New creates a collector and registers its metrics on r.
func New(r prometheus.Registerer) *Collector {
	c := &Collector{
		allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_allocated_total",
			Help:      "Objects successfully created, by object type",
		}, []string{"type"}),
		deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_deleted_total",
			Help:      "Objects deleted, by object type",
		}, []string{"type"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects_active",
			Help:      "Live objects, by object type",
		}, []string{"type"}),
		contention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Refcount or exclusive lock attempts that had to back off",
		}, []string{"type"}),
		inUse: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_in_use_total",
			Help:      "Lock requests that gave up with ObjectInUse",
		}, []string{"type"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timebase",
			Name:      "ticks_total",
			Help:      "Elapsed ticks accounted by each timebase",
		}, []string{"timebase"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timebase",
			Name:      "callbacks_total",
			Help:      "Timer callbacks run by each timebase",
		}, []string{"timebase"}),
		backlog: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timebase",
			Name:      "backlog_resets_total",
			Help:      "Timer waits clamped because ticks outran the interval",
		}, []string{"timebase"}),
		spins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timebase",
			Name:      "spin_warnings_total",
			Help:      "Service loops that detected a sync spin",
		}, []string{"timebase"}),
	}
	r.MustRegister(c.allocated, c.deleted, c.active, c.contention, c.inUse,
		c.ticks, c.callbacks, c.backlog, c.spins)
	return c
}

// OnObjectEvent implements idmap.Observer.
func (c *Collector) OnObjectEvent(e idmap.Event) {
	typ := e.ObjType.String()
	switch e.Type {
	case idmap.EventAllocated:
		c.allocated.WithLabelValues(typ).Inc()
		c.active.WithLabelValues(typ).Inc()
	case idmap.EventDeleted:
		c.deleted.WithLabelValues(typ).Inc()
		c.active.WithLabelValues(typ).Dec()
	case idmap.EventContention:
		c.contention.WithLabelValues(typ).Inc()
	case idmap.EventInUse:
		c.inUse.WithLabelValues(typ).Inc()
	}
}

// OnTimeBaseEvent implements timebase.Observer.
func (c *Collector) OnTimeBaseEvent(e timebase.Event) {
	switch e.Type {
	case timebase.EventTick:
		c.ticks.WithLabelValues(e.Name).Add(float64(e.Ticks))
	case timebase.EventCallback:
		c.callbacks.WithLabelValues(e.Name).Inc()
	case timebase.EventBacklog:
		c.backlog.WithLabelValues(e.Name).Inc()
	case timebase.EventSpin:
		c.spins.WithLabelValues(e.Name).Inc()
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr at /metrics until the server fails.
func Serve(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
	return server
}
