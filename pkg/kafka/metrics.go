package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer

	producerMsgs    *prometheus.CounterVec
	producerBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec

	consumerQueueDepth *prometheus.GaugeVec
	consumerHandled    *prometheus.CounterVec
	consumerLatency    *prometheus.HistogramVec
	consumerDLQ        *prometheus.CounterVec
)

// SetMetricsRegisterer overrides the registerer used for kafka metrics.
// It must be called before the first producer or consumer is built.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		registerer = reg
	}
}

func initMetrics() {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		producerMsgs = f.NewCounterVec(prometheus.CounterOpts{
			Name: "finprofile_kafka_producer_messages_total",
			Help: "Messages published to Kafka",
		}, []string{"topic", "compression", "result"})
		producerBytes = f.NewCounterVec(prometheus.CounterOpts{
			Name: "finprofile_kafka_producer_bytes_total",
			Help: "Payload bytes published to Kafka",
		}, []string{"topic"})
		producerLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finprofile_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})

		consumerQueueDepth = f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "finprofile_kafka_consumer_queue_depth",
			Help: "Messages waiting in a worker queue",
		}, []string{"worker"})
		consumerHandled = f.NewCounterVec(prometheus.CounterOpts{
			Name: "finprofile_kafka_consumer_messages_total",
			Help: "Messages handled by the consumer",
		}, []string{"topic", "result"})
		consumerLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finprofile_kafka_consumer_handle_seconds",
			Help:    "Handling time per message",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
		consumerDLQ = f.NewCounterVec(prometheus.CounterOpts{
			Name: "finprofile_kafka_consumer_dlq_total",
			Help: "Messages routed to the dead letter topic",
		}, []string{"topic"})
	})
}

func observeProduce(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgs.WithLabelValues(topic, comp, result).Add(float64(count))
	producerBytes.WithLabelValues(topic).Add(float64(bytes))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeHandle(topic string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
