// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobbolt"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Relay metrics
	ClientsConnected   prometheus.Gauge
	ClientsTotal       prometheus.Counter
	KeepalivesSent     prometheus.Counter
	RelaySendFailures  prometheus.Counter

	// Session metrics
	SessionsActive         prometheus.Gauge
	SessionsStarted        prometheus.Counter
	SessionStartupFailures prometheus.Counter
	SessionUpstreamErrors  prometheus.Counter
	SessionStartupDuration prometheus.Histogram
	FramesQueued           prometheus.Gauge

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Analysis pipeline metrics
	AnalysisRuns            prometheus.Counter
	AnalysisFailures        *prometheus.CounterVec
	AnalysisCompleted       prometheus.Counter
	AnalysisAttempts        prometheus.Counter
	AnalysisAttemptDuration prometheus.Histogram
	BudgetBand              *prometheus.CounterVec
	BackgroundPanics        prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ClientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_clients_connected",
			Help:      "Number of currently connected relay clients",
		}),
		ClientsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_clients_total",
			Help:      "Total number of relay client connections accepted",
		}),
		KeepalivesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_keepalives_sent_total",
			Help:      "Total number of keepalive pings sent to clients",
		}),
		RelaySendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_send_failures_total",
			Help:      "Total number of failed sends on client connections",
		}),

		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live upstream transcription sessions",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of upstream sessions started",
		}),
		SessionStartupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_startup_failures_total",
			Help:      "Total number of upstream handshakes that failed or timed out",
		}),
		SessionUpstreamErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_upstream_errors_total",
			Help:      "Total number of mid-session upstream errors",
		}),
		SessionStartupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_startup_duration_seconds",
			Help:      "Duration of upstream session handshakes in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		FramesQueued: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_frames_queued",
			Help:      "Audio frames currently queued while sessions start",
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),

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

		AnalysisRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Total number of analysis runs started",
		}),
		AnalysisFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Total number of analysis runs failed, by stage",
		}, []string{"stage"}),
		AnalysisCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_completed_total",
			Help:      "Total number of analysis runs completed and persisted",
		}),
		AnalysisAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_model_attempts_total",
			Help:      "Total number of reasoning model call attempts",
		}),
		AnalysisAttemptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_model_attempt_duration_seconds",
			Help:      "Duration of individual reasoning model attempts in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		BudgetBand: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_budget_band_total",
			Help:      "Total analysis requests classified per context budget band",
		}, []string{"band"}),
		BackgroundPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_task_panics_total",
			Help:      "Total number of panics recovered in background tasks",
		}),
	}
}

// RecordClientConnected records a relay client connecting.
func (m *Metrics) RecordClientConnected() {
	m.ClientsTotal.Inc()
	m.ClientsConnected.Inc()
}

// RecordClientDisconnected records a relay client disconnecting.
func (m *Metrics) RecordClientDisconnected() {
	m.ClientsConnected.Dec()
}

// RecordSessionStarted records a successful upstream handshake.
func (m *Metrics) RecordSessionStarted(durationSeconds float64) {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
	m.SessionStartupDuration.Observe(durationSeconds)
}

// RecordSessionClosed records an upstream session ending.
func (m *Metrics) RecordSessionClosed() {
	m.SessionsActive.Dec()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordTranscript records a transcript event by finality.
func (m *Metrics) RecordTranscript(isFinal bool) {
	if isFinal {
		m.TranscriptsFinal.Inc()
	} else {
		m.TranscriptsPartial.Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordAnalysisFailure records an analysis run failing at a stage.
func (m *Metrics) RecordAnalysisFailure(stage string) {
	m.AnalysisFailures.WithLabelValues(stage).Inc()
}

// RecordModelAttempt records one reasoning model call attempt.
func (m *Metrics) RecordModelAttempt(durationSeconds float64) {
	m.AnalysisAttempts.Inc()
	m.AnalysisAttemptDuration.Observe(durationSeconds)
}

// RecordBudgetBand records the budget band of an analysis request.
func (m *Metrics) RecordBudgetBand(band string) {
	m.BudgetBand.WithLabelValues(band).Inc()
}
