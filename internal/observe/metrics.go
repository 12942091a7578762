// Package observe provides application-wide observability primitives for
// readalong: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all readalong metrics.
const meterName = "github.com/lukereed/readalong"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TokenProcessingDuration tracks the time spent aligning and classifying
	// a single recognized token.
	TokenProcessingDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency as reported by
	// the streaming provider.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency for coaching
	// prompts.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// WordEvents counts emitted word events. Use with attribute:
	//   attribute.String("type", ...)
	WordEvents metric.Int64Counter

	// Stalls counts stall interventions fired by the watchdog.
	Stalls metric.Int64Counter

	// Hints counts learner-requested hints.
	Hints metric.Int64Counter

	// LevelDecisions counts progression outcomes. Use with attribute:
	//   attribute.String("action", ...)
	LevelDecisions metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveAttempts tracks the number of reading attempts currently in a
	// non-terminal state.
	ActiveAttempts metric.Int64UpDownCounter

	// --- Score distribution ---

	// AttemptScore records the total score of each finished attempt.
	AttemptScore metric.Float64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// scoreBuckets covers the 0-100 total score range in ten-point steps.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TokenProcessingDuration, err = m.Float64Histogram("readalong.token.processing.duration",
		metric.WithDescription("Time spent aligning and classifying a recognized token."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("readalong.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("readalong.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis for coaching prompts."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WordEvents, err = m.Int64Counter("readalong.word.events",
		metric.WithDescription("Total word events emitted, by event type."),
	); err != nil {
		return nil, err
	}
	if met.Stalls, err = m.Int64Counter("readalong.stalls",
		metric.WithDescription("Total stall interventions fired by the watchdog."),
	); err != nil {
		return nil, err
	}
	if met.Hints, err = m.Int64Counter("readalong.hints",
		metric.WithDescription("Total learner-requested hints."),
	); err != nil {
		return nil, err
	}
	if met.LevelDecisions, err = m.Int64Counter("readalong.level.decisions",
		metric.WithDescription("Total progression decisions by action."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("readalong.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveAttempts, err = m.Int64UpDownCounter("readalong.active_attempts",
		metric.WithDescription("Number of reading attempts currently in progress."),
	); err != nil {
		return nil, err
	}

	// Score distribution.
	if met.AttemptScore, err = m.Float64Histogram("readalong.attempt.score",
		metric.WithDescription("Total score of finished attempts."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("readalong.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordWordEvent is a convenience method that records a word event counter
// increment with the event type attribute.
func (m *Metrics) RecordWordEvent(ctx context.Context, eventType string) {
	m.WordEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordLevelDecision is a convenience method that records a progression
// decision counter increment with the action attribute.
func (m *Metrics) RecordLevelDecision(ctx context.Context, action string) {
	m.LevelDecisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
