package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveBots       prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ReadyWaitSeconds prometheus.Histogram
	DetectLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveBots: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_bots",
			Help:      "Number of bot sessions currently registered.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider errors by provider and operation.",
		}, []string{"provider", "op"}),
		ReadyWaitSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bot_ready_wait_seconds",
			Help:      "Time /connect spent waiting for the bot to join its room.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10},
		}),
		DetectLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "language_detection_ms",
			Help:      "Language detection round-trip time in milliseconds.",
			Buckets:   []float64{50, 100, 150, 200, 250, 300, 500},
		}),
	}
}

func (m *Metrics) ObserveReadyWait(d time.Duration) {
	m.ReadyWaitSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveDetectLatency(d time.Duration) {
	m.DetectLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
