// Package observe provides application-wide observability primitives for
// HorizonSum: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hzn-labs/horizonsum/internal/session"
)

// meterName is the instrumentation scope name used for all HorizonSum metrics.
const meterName = "github.com/hzn-labs/horizonsum"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage pipeline latency. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// RunsStarted counts pipeline runs accepted for processing.
	RunsStarted metric.Int64Counter

	// RunsFailed counts pipeline runs that ended in the error stage. Use with
	// attribute: attribute.String("stage", ...) for the stage that failed.
	RunsFailed metric.Int64Counter

	// SummariesGenerated counts summary variants produced, including drafts
	// regenerated through the review API.
	SummariesGenerated metric.Int64Counter

	// CorrectionsApplied counts terminology corrections applied to
	// transcripts.
	CorrectionsApplied metric.Int64Counter

	// ActiveRuns tracks the number of runs currently being processed.
	ActiveRuns metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets defines histogram bucket boundaries (in seconds). Pipeline
// stages range from sub-second terminology passes to multi-minute downloads.
var stageBuckets = []float64{
	0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("horizonsum.stage.duration",
		metric.WithDescription("Latency of pipeline stages by stage name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("horizonsum.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("horizonsum.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.RunsStarted, err = m.Int64Counter("horizonsum.runs.started",
		metric.WithDescription("Total pipeline runs accepted for processing."),
	); err != nil {
		return nil, err
	}
	if met.RunsFailed, err = m.Int64Counter("horizonsum.runs.failed",
		metric.WithDescription("Total pipeline runs that ended in the error stage."),
	); err != nil {
		return nil, err
	}
	if met.SummariesGenerated, err = m.Int64Counter("horizonsum.summaries.generated",
		metric.WithDescription("Total summary variants produced."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsApplied, err = m.Int64Counter("horizonsum.corrections.applied",
		metric.WithDescription("Total terminology corrections applied to transcripts."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRuns, err = m.Int64UpDownCounter("horizonsum.active_runs",
		metric.WithDescription("Number of runs currently being processed."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("horizonsum.http.request.duration",
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
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

// StageObserver adapts [Metrics] to the pipeline's stage observer hooks,
// recording stage durations, failures, and the active-run gauge.
type StageObserver struct {
	metrics *Metrics
}

// NewStageObserver returns a StageObserver recording into m.
func NewStageObserver(m *Metrics) *StageObserver {
	return &StageObserver{metrics: m}
}

// StageStarted increments the active-run gauge when the first stage of a run
// begins.
func (o *StageObserver) StageStarted(stage session.Stage) {
	if stage == session.StageDownloading {
		o.metrics.RunsStarted.Add(context.Background(), 1)
		o.metrics.ActiveRuns.Add(context.Background(), 1)
	}
}

// StageFinished records the stage duration and, on failure, the failed-run
// counter. The active-run gauge drops when a run fails or finishes its last
// working stage.
func (o *StageObserver) StageFinished(stage session.Stage, d time.Duration, err error) {
	ctx := context.Background()
	o.metrics.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", string(stage))),
	)
	if err != nil {
		o.metrics.RunsFailed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", string(stage))),
		)
		o.metrics.ActiveRuns.Add(ctx, -1)
		return
	}
	if stage == session.StageSummarizing {
		o.metrics.ActiveRuns.Add(ctx, -1)
	}
}
