package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/SirClappington/jobstream/internal/domain"
)

const (
	// MeterName and TracerName identify this module's instrumentation scope.
	MeterName  = "github.com/SirClappington/jobstream"
	TracerName = "github.com/SirClappington/jobstream"
)

// Stream outcomes recorded on jobstream.relay.streams.
const (
	OutcomeCompleted    = "completed"
	OutcomeCreateFailed = "create_failed"
	OutcomeQueryFailed  = "query_failed"
	OutcomeDisconnected = "disconnected"
	OutcomeSendFailed   = "send_failed"
)

// Metrics holds the registry and relay instruments.
type Metrics struct {
	jobsCreated   metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsNotFound  metric.Int64Counter
	queryDuration metric.Float64Histogram
	streams       metric.Int64Counter
	events        metric.Int64Counter
}

// NewMetrics creates the instruments from mp. An instrument the provider
// fails to create is replaced by a no-op one, so recording never needs a nil
// check but that instrument reports nothing.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	var err error

	m.jobsCreated, err = meter.Int64Counter(
		"jobstream.registry.jobs.created",
		metric.WithDescription("Jobs created by the registry"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.jobsCreated = noop.Int64Counter{}
	}

	m.jobsCompleted, err = meter.Int64Counter(
		"jobstream.registry.jobs.completed",
		metric.WithDescription("Jobs observed as completed and removed"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		m.jobsCompleted = noop.Int64Counter{}
	}

	m.jobsNotFound, err = meter.Int64Counter(
		"jobstream.registry.jobs.not_found",
		metric.WithDescription("Queries for unknown or expired job ids"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		m.jobsNotFound = noop.Int64Counter{}
	}

	m.queryDuration, err = meter.Float64Histogram(
		"jobstream.registry.query.duration",
		metric.WithDescription("Duration of registry job queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.queryDuration = noop.Float64Histogram{}
	}

	m.streams, err = meter.Int64Counter(
		"jobstream.relay.streams",
		metric.WithDescription("Subscriber streams closed, by outcome"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		m.streams = noop.Int64Counter{}
	}

	m.events, err = meter.Int64Counter(
		"jobstream.relay.events",
		metric.WithDescription("Status events sent to subscribers, by result"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.events = noop.Int64Counter{}
	}

	return m
}

// NewNoopMetrics returns metrics that record nothing.
func NewNoopMetrics() *Metrics {
	return NewMetrics(noop.NewMeterProvider())
}

func (m *Metrics) RecordJobCreated(ctx context.Context) {
	m.jobsCreated.Add(ctx, 1)
}

func (m *Metrics) RecordQuery(ctx context.Context, result string, duration time.Duration) {
	m.queryDuration.Record(ctx, float64(duration.Microseconds())/1000,
		metric.WithAttributes(attribute.String(AttrResult, result)))

	switch result {
	case string(domain.Completed):
		m.jobsCompleted.Add(ctx, 1)
	case ResultNotFound:
		m.jobsNotFound.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStream(ctx context.Context, outcome string) {
	m.streams.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

func (m *Metrics) RecordEvent(ctx context.Context, result domain.Status) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, string(result))))
}
