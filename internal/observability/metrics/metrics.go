// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recitation_gateway"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Gateway request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
	RejectedRequests *prometheus.CounterVec

	// Upstream call metrics
	UpstreamCalls   *prometheus.CounterVec
	UpstreamErrors  *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec

	// Transcription job metrics
	JobsTotal    *prometheus.CounterVec
	PollAttempts prometheus.Histogram
	JobDuration  prometheus.Histogram

	// Audio metrics
	AudioBytesReceived prometheus.Counter

	// Score parsing metrics
	ScoreParses *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of gateway requests by route and status code",
		}, []string{"route", "status"}),
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of gateway requests currently being served",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"route"}),
		RejectedRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Requests rejected before any upstream call",
		}, []string{"route", "reason"}),

		UpstreamCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Total number of upstream provider calls",
		}, []string{"provider", "operation"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of upstream provider errors",
		}, []string{"provider", "operation"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Upstream provider call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "operation"}),

		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_jobs_total",
			Help:      "Total number of async transcription jobs by outcome",
		}, []string{"outcome"}),
		PollAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_poll_attempts",
			Help:      "Number of status reads issued per transcription job",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 30, 45, 60},
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_job_duration_seconds",
			Help:      "Wall-clock duration of transcription jobs in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes accepted from callers",
		}),

		ScoreParses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_parses_total",
			Help:      "Similarity score extractions by outcome (parsed, keyword, unparsed)",
		}, []string{"outcome"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordRequest records a completed gateway request.
func (m *Metrics) RecordRequest(route, status string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordRejected records a request rejected before contacting any upstream.
func (m *Metrics) RecordRejected(route, reason string) {
	m.RejectedRequests.WithLabelValues(route, reason).Inc()
}

// RecordUpstreamCall records one upstream call and its latency.
func (m *Metrics) RecordUpstreamCall(provider, operation string, err error, latencySeconds float64) {
	m.UpstreamCalls.WithLabelValues(provider, operation).Inc()
	m.UpstreamLatency.WithLabelValues(provider, operation).Observe(latencySeconds)
	if err != nil {
		m.UpstreamErrors.WithLabelValues(provider, operation).Inc()
	}
}

// RecordJob records a finished transcription job.
func (m *Metrics) RecordJob(outcome string, pollAttempts int, durationSeconds float64) {
	m.JobsTotal.WithLabelValues(outcome).Inc()
	m.PollAttempts.Observe(float64(pollAttempts))
	m.JobDuration.Observe(durationSeconds)
}

// RecordAudioReceived records audio bytes accepted from a caller.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordScoreParse records a similarity score extraction outcome.
func (m *Metrics) RecordScoreParse(outcome string) {
	m.ScoreParses.WithLabelValues(outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
