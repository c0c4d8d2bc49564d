package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the call core.
type Metrics struct {
	ActiveRooms       prometheus.Gauge
	PresenceEvents    *prometheus.CounterVec
	SignalMessages    *prometheus.CounterVec
	AdmissionOutcomes *prometheus.CounterVec
	SegmentLatency    prometheus.Histogram
	DegradedFrames    prometheus.Counter
	FileTransferBytes prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms with live presence state.",
		}),
		PresenceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_total",
			Help:      "Presence events by type (joined, left, replaced).",
		}, []string{"event"}),
		SignalMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_messages_total",
			Help:      "Signaling messages by direction and type.",
		}, []string{"direction", "type"}),
		AdmissionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_outcomes_total",
			Help:      "Admission attempts by outcome.",
		}, []string{"outcome"}),
		SegmentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segmentation_latency_ms",
			Help:      "Latency of one segmentation pass in milliseconds.",
			Buckets:   []float64{5, 10, 20, 40, 80, 150, 300, 600},
		}),
		DegradedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_frames_total",
			Help:      "Frames served from the previous composite because the budget was exceeded.",
		}),
		FileTransferBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_transfer_bytes_total",
			Help:      "Bytes received over the file data channel.",
		}),
	}
}

func (m *Metrics) ObserveSegmentLatency(d time.Duration) {
	m.SegmentLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
