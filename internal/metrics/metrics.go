// Package metrics holds the Prometheus instruments recorded by the boundary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nyx_mobile"

// Metrics holds all instruments. Pass to components that need to record.
type Metrics struct {
	CallsTotal        *prometheus.CounterVec
	PowerStateSets    *prometheus.CounterVec
	PushWakes         prometheus.Counter
	Resumes           prometheus.Counter
	ConnectionsTotal  *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	NetworkChanges    prometheus.Counter
	KeepalivePasses   prometheus.Counter
	TelemetryLabel    *prometheus.GaugeVec
	BackgroundMode    prometheus.Gauge
	ConnectionQuality prometheus.Gauge
}

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Boundary calls by operation and resulting status",
			},
			[]string{"op", "status"},
		),
		PowerStateSets: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "power_state_set_total",
				Help:      "Accepted power state changes",
			},
			[]string{"state"},
		),
		PushWakes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_wake_total",
			Help:      "Push wake notifications received",
		}),
		Resumes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resume_total",
			Help:      "Low power session resumes",
		}),
		ConnectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Connection attempts by result",
			},
			[]string{"result"}, // result=ok/failed/rejected
		),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Currently open connections",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes handed to the engine",
		}),
		BytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes returned to the host",
		}),
		NetworkChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "network_changes_total",
			Help:      "Network type transitions",
		}),
		KeepalivePasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalive_passes_total",
			Help:      "Keepalive passes over open sessions",
		}),
		TelemetryLabel: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "telemetry_label",
				Help:      "Telemetry labels set by the host (value is always 1)",
			},
			[]string{"key", "value"},
		),
		BackgroundMode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "background_mode",
			Help:      "1 while background optimisations are enabled",
		}),
		ConnectionQuality: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_quality",
			Help:      "Last assessed quality (0=excellent .. 4=disconnected)",
		}),
	}
}
