// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers     prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	OpenConnections   prometheus.Gauge
	MessagesReceived  prometheus.Counter
	BroadcastsSent    prometheus.Counter
	BroadcastFailures prometheus.Counter
	EventLatency      *prometheus.HistogramVec
}

// NewMetrics creates the server metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of joined players across all rooms",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of running room actors",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of open WebSocket connections",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of client frames received",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "State updates handed to a connection",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "State updates that could not be handed to a connection",
		}),
		EventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_event_seconds",
			Help:      "Time a room spends handling one event",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.OpenConnections,
		m.MessagesReceived,
		m.BroadcastsSent,
		m.BroadcastFailures,
		m.EventLatency,
	)

	return m
}

var publishOnce sync.Once

// Monitor records room and connection activity. It implements room.Recorder.
type Monitor struct {
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	startTime time.Time
}

// NewMonitor registers metrics on a fresh registry that also carries the
// process and Go runtime collectors.
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	m := &Monitor{
		metrics:   NewMetrics(namespace, reg),
		gatherer:  reg,
		startTime: time.Now(),
	}

	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
	})
	return m
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Handler serves the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// VarsHandler serves expvar data.
func (m *Monitor) VarsHandler() http.Handler {
	return expvar.Handler()
}

func (m *Monitor) EventHandled(kind string, elapsed time.Duration) {
	m.metrics.EventLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Monitor) PlayersChanged(delta int) {
	m.metrics.OnlinePlayers.Add(float64(delta))
}

func (m *Monitor) RoomsChanged(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) ConnectionOpened() {
	m.metrics.OpenConnections.Inc()
}

func (m *Monitor) ConnectionClosed() {
	m.metrics.OpenConnections.Dec()
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
}
