// Package observability provides Prometheus metrics and logger construction.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Ask metrics
	AsksTotal     *prometheus.CounterVec
	AskDuration   prometheus.Histogram
	EnvelopeKinds *prometheus.CounterVec
	StaleAnswers  prometheus.Counter

	// Extraction metrics
	Extractions *prometheus.CounterVec

	// Backend metrics
	BackendLatency *prometheus.HistogramVec
	MarketFetches  *prometheus.CounterVec

	// Voice metrics
	VoiceEvents *prometheus.CounterVec

	// Narrator metrics
	NarratorCalls *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_assistant"
	}

	return &Metrics{
		AsksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "asks_total",
			Help:      "Total number of asks by outcome",
		}, []string{"outcome"}),
		AskDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "ask_duration_seconds",
			Help:      "Ask round-trip latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		EnvelopeKinds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "envelope_kinds_total",
			Help:      "Total number of decoded envelopes by kind",
		}, []string{"kind"}),
		StaleAnswers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "stale_answers_total",
			Help:      "Answers that arrived after a newer ask was issued",
		}),

		Extractions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "extractions_total",
			Help:      "Source extraction attempts by extractor and result",
		}, []string{"extractor", "result"}),

		BackendLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_latency_seconds",
			Help:      "Backend request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		MarketFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fetches_total",
			Help:      "Market list fetches by status",
		}, []string{"status"}),

		VoiceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voice",
			Name:      "events_total",
			Help:      "Voice session events by type",
		}, []string{"event"}),

		NarratorCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narrator",
			Name:      "calls_total",
			Help:      "Narrator calls by mode and status",
		}, []string{"mode", "status"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAsk records one finished ask.
func RecordAsk(outcome string, seconds float64) {
	DefaultMetrics.AsksTotal.WithLabelValues(outcome).Inc()
	if seconds >= 0 {
		DefaultMetrics.AskDuration.Observe(seconds)
	}
}

func RecordEnvelopeKind(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	DefaultMetrics.EnvelopeKinds.WithLabelValues(kind).Inc()
}

func RecordStaleAnswer() {
	DefaultMetrics.StaleAnswers.Inc()
}

// RecordExtraction records whether an extractor found anything.
func RecordExtraction(extractor string, found bool) {
	result := "empty"
	if found {
		result = "found"
	}
	DefaultMetrics.Extractions.WithLabelValues(extractor, result).Inc()
}

// RecordBackendLatency records backend call latency.
func RecordBackendLatency(endpoint string, seconds float64) {
	DefaultMetrics.BackendLatency.WithLabelValues(endpoint).Observe(seconds)
}

func RecordMarketFetch(status string) {
	DefaultMetrics.MarketFetches.WithLabelValues(status).Inc()
}

func RecordVoiceEvent(event string) {
	DefaultMetrics.VoiceEvents.WithLabelValues(event).Inc()
}

func RecordNarratorCall(mode, status string) {
	DefaultMetrics.NarratorCalls.WithLabelValues(mode, status).Inc()
}
