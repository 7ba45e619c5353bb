package metrics

import (
	"FinProfile/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	signals      *prometheus.CounterVec
	levels       *prometheus.GaugeVec
	nakedPOCs    *prometheus.GaugeVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finprofile_messages_sent_total",
				Help: "Total number of messages sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finprofile_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finprofile_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finprofile_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finprofile_signals_total",
				Help: "Signals emitted per symbol and setup",
			},
			[]string{"symbol", "setup"},
		),
		levels: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finprofile_reference_level",
				Help: "Current POC, VAH and VAL per symbol",
			},
			[]string{"symbol", "level"},
		),
		nakedPOCs: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finprofile_naked_pocs",
				Help: "Tracked naked POCs per symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordSignal counts an emitted signal.
func (r *Recorder) RecordSignal(symbol, setup string) {
	r.signals.WithLabelValues(symbol, setup).Inc()
}

// RecordProfile publishes the latest reference levels of a symbol.
func (r *Recorder) RecordProfile(symbol string, lv models.ReferenceLevels, nakedCount int) {
	r.levels.WithLabelValues(symbol, "poc").Set(lv.POC)
	r.levels.WithLabelValues(symbol, "vah").Set(lv.VAH)
	r.levels.WithLabelValues(symbol, "val").Set(lv.VAL)
	r.nakedPOCs.WithLabelValues(symbol).Set(float64(nakedCount))
}
