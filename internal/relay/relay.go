// Package relay turns a registry job into a live status stream for a single
// subscriber. It creates a job, polls it on a fixed interval and forwards
// every status it observes until the job reaches a terminal status or the
// subscriber goes away.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/domain"
	"github.com/SirClappington/jobstream/internal/observability"
)

const (
	DefaultPollInterval = time.Second

	MsgCreateFailed = "Unable to create job"
	MsgQueryFailed  = "Job not found"
)

// Sink receives stream messages in order. Send must deliver the message to
// the subscriber before returning.
type Sink interface {
	Send(rep domain.Report) error
}

type Relay struct {
	client   Client
	interval time.Duration

	logger  *zap.Logger
	metrics *observability.Metrics
}

type Option func(*Relay)

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func New(client Client, opts ...Option) *Relay {
	r := &Relay{
		client:   client,
		interval: DefaultPollInterval,
		logger:   zap.NewNop(),
		metrics:  observability.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StreamStatus runs one subscriber stream to completion. ctx must be
// cancelled when the subscriber disconnects; cancellation ends the stream
// without a final message. The returned error is non-nil only when sink
// fails.
func (r *Relay) StreamStatus(ctx context.Context, sink Sink) error {
	outcome := observability.OutcomeCompleted
	defer func() { r.metrics.RecordStream(context.WithoutCancel(ctx), outcome) }()

	created, err := r.client.CreateJob(ctx)
	if err != nil {
		if ctx.Err() != nil {
			outcome = observability.OutcomeDisconnected
			r.logger.Debug("subscriber left before job was created")
			return nil
		}
		outcome = observability.OutcomeCreateFailed
		r.logger.Warn("create job", zap.Error(err))
		return r.send(ctx, sink, domain.ErrorReport(MsgCreateFailed), &outcome)
	}

	logger := r.logger.With(zap.String("job_id", created.JobID))
	logger.Debug("streaming job status")

	// Each wait is a full interval counted from the last emission.
	wait := time.NewTimer(r.interval)
	defer wait.Stop()

	for {
		rep, err := r.client.QueryJob(ctx, created.JobID)
		if err != nil {
			if ctx.Err() != nil {
				outcome = observability.OutcomeDisconnected
				logger.Debug("subscriber disconnected during query")
				return nil
			}
			outcome = observability.OutcomeQueryFailed
			logger.Warn("query job", zap.Error(err))
			return r.send(ctx, sink, domain.ErrorReport(MsgQueryFailed), &outcome)
		}

		if err := r.send(ctx, sink, rep, &outcome); err != nil {
			return err
		}

		if rep.Result.Terminal() {
			logger.Debug("job reached terminal status", zap.String("result", string(rep.Result)))
			return nil
		}

		wait.Reset(r.interval)
		select {
		case <-ctx.Done():
			outcome = observability.OutcomeDisconnected
			logger.Debug("subscriber disconnected")
			return nil
		case <-wait.C:
		}
	}
}

func (r *Relay) send(ctx context.Context, sink Sink, rep domain.Report, outcome *string) error {
	if err := sink.Send(rep); err != nil {
		*outcome = observability.OutcomeSendFailed
		r.logger.Debug("send to subscriber", zap.Error(err))
		return err
	}
	r.metrics.RecordEvent(context.WithoutCancel(ctx), rep.Result)
	return nil
}
