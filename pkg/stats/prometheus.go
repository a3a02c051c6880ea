package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes all metric names.
const Namespace = "sockbridge"

// Metrics is a Collector exporting Prometheus metrics.
type Metrics struct {
	Ingested  prometheus.Counter
	Dropped   prometheus.Counter
	Sent      prometheus.Counter
	Attempts  prometheus.Counter
	Failures  *prometheus.CounterVec
	Up        prometheus.Gauge
	BackoffMs prometheus.Gauge
	// Indicator mirrors the status indicator, only registered when used.
	Indicator prometheus.Gauge
}

// NewMetrics registers the bridge metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ingested: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "ingested_bytes_total",
			Help: "Bytes accepted from the serial side into the buffer.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "dropped_bytes_total",
			Help: "Bytes discarded because the buffer was full or not allocated.",
		}),
		Sent: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "sent_bytes_total",
			Help: "Bytes written to the remote endpoint.",
		}),
		Attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "connect_attempts_total",
			Help: "Connection attempts.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "failures_total",
			Help: "Failed attempts and lost connections by stage.",
		}, []string{"stage"}),
		Up: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "connected",
			Help: "1 while connected to the remote endpoint.",
		}),
		BackoffMs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "backoff_milliseconds",
			Help: "Delay before the next connection attempt.",
		}),
	}
}

// AddIngested implements Collector.
func (m *Metrics) AddIngested(n int) { m.Ingested.Add(float64(n)) }

// AddDropped implements Collector.
func (m *Metrics) AddDropped(n int) { m.Dropped.Add(float64(n)) }

// AddSent implements Collector.
func (m *Metrics) AddSent(n int) { m.Sent.Add(float64(n)) }

// Attempt implements Collector.
func (m *Metrics) Attempt() { m.Attempts.Inc() }

// Failed implements Collector.
func (m *Metrics) Failed(stage string) { m.Failures.WithLabelValues(stage).Inc() }

// Connected implements Collector.
func (m *Metrics) Connected(v bool) { m.Up.Set(boolValue(v)) }

// Backoff implements Collector.
func (m *Metrics) Backoff(d time.Duration) {
	m.BackoffMs.Set(float64(d) / float64(time.Millisecond))
}

// RegisterIndicator adds a gauge mirroring the status indicator.
// The result implements status.Indicator.
func (m *Metrics) RegisterIndicator(reg prometheus.Registerer) *IndicatorGauge {
	m.Indicator = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace, Name: "indicator_active",
		Help: "1 while the status indicator is lit.",
	})
	return &IndicatorGauge{Gauge: m.Indicator}
}

// IndicatorGauge drives a gauge as a status indicator.
type IndicatorGauge struct {
	Gauge prometheus.Gauge
}

// SetActive implements status.Indicator.
func (g *IndicatorGauge) SetActive(active bool) {
	g.Gauge.Set(boolValue(active))
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
