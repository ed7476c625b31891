// Package registry creates jobs and derives their status from how long ago
// they were created. A job is pending until the threshold has elapsed; the
// first query at or past the threshold reports it completed and forgets it.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/domain"
	"github.com/SirClappington/jobstream/internal/observability"
	"github.com/SirClappington/jobstream/internal/storage"
)

type Registry struct {
	store     storage.Store
	threshold time.Duration
	now       func() time.Time
	newID     func() string

	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithTracer(t *observability.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

func New(store storage.Store, threshold time.Duration, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		threshold: threshold,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
		metrics:   observability.NewNoopMetrics(),
		tracer:    observability.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateJob records a new job created now and reports it pending.
func (r *Registry) CreateJob(ctx context.Context) (rep domain.Report, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "registry.create_job")
	defer func() { observability.EndSpan(span, err) }()

	job := domain.Job{ID: r.newID(), CreatedAt: r.now()}
	span.SetAttributes(observability.JobIDAttr(job.ID))

	if err := r.store.Create(ctx, job); err != nil {
		return domain.Report{}, err
	}

	r.metrics.RecordJobCreated(ctx)
	r.logger.Debug("job created", zap.String("job_id", job.ID))

	return domain.Report{JobID: job.ID, Result: domain.Pending}, nil
}

// QueryJob reports the job's status. Once the threshold has elapsed the job
// is deleted in the same call, so it is reported completed exactly once and
// every later query returns domain.ErrJobNotFound.
func (r *Registry) QueryJob(ctx context.Context, id string) (rep domain.Report, err error) {
	ctx, span := r.tracer.StartSpan(ctx, "registry.query_job", observability.JobIDAttr(id))
	start := time.Now()
	defer func() {
		result := string(rep.Result)
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			result = observability.ResultNotFound
		case err != nil:
			result = string(domain.Error)
		}
		r.metrics.RecordQuery(ctx, result, time.Since(start))
		observability.EndSpan(span, err)
	}()

	job, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}

	status := job.StatusAt(r.now(), r.threshold)
	if status == domain.Completed {
		// A concurrent query may have deleted it first; that caller reported
		// completion, so this one sees not found.
		if err := r.store.Delete(ctx, id); err != nil {
			return domain.Report{}, err
		}
		r.logger.Debug("job completed", zap.String("job_id", id))
	}

	return domain.Report{Result: status}, nil
}
