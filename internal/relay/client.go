package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SirClappington/jobstream/internal/domain"
	"github.com/SirClappington/jobstream/internal/observability"
)

const maxResponseBytes = 64 << 10

var (
	ErrCreateFailed = errors.New("create job failed")
	ErrQueryFailed  = errors.New("query job failed")
)

// Client is the relay's view of the registry.
type Client interface {
	CreateJob(ctx context.Context) (domain.Report, error)
	QueryJob(ctx context.Context, id string) (domain.Report, error)
}

// HTTPClient talks to a registry's /status endpoints.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tracer  *observability.Tracer
}

// NewHTTPClient returns a client for the registry at baseURL. Every call is
// bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, tracer *observability.Tracer) *HTTPClient {
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tracer:  tracer,
	}
}

// CreateJob fails with ErrCreateFailed on any transport error, non-200
// response or a body without a job id.
func (c *HTTPClient) CreateJob(ctx context.Context) (rep domain.Report, err error) {
	ctx, span := c.tracer.StartSpan(ctx, "relay.registry.create_job")
	defer func() { observability.EndSpan(span, err) }()

	rep, err = c.get(ctx, c.baseURL+"/status")
	if err != nil {
		return domain.Report{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	if rep.JobID == "" {
		return domain.Report{}, fmt.Errorf("%w: response has no job_id", ErrCreateFailed)
	}
	return rep, nil
}

// QueryJob fails with ErrQueryFailed on any transport error, non-200
// response or a body without a known result. A 404 additionally matches
// domain.ErrJobNotFound.
func (c *HTTPClient) QueryJob(ctx context.Context, id string) (rep domain.Report, err error) {
	ctx, span := c.tracer.StartSpan(ctx, "relay.registry.query_job", observability.JobIDAttr(id))
	defer func() { observability.EndSpan(span, err) }()

	rep, err = c.get(ctx, c.baseURL+"/status/"+url.PathEscape(id))
	if err != nil {
		return domain.Report{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if !rep.Result.Valid() {
		return domain.Report{}, fmt.Errorf("%w: unexpected result %q", ErrQueryFailed, rep.Result)
	}
	return rep, nil
}

func (c *HTTPClient) get(ctx context.Context, u string) (domain.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Report{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Report{}, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Report{}, fmt.Errorf("registry returned %s: %w", resp.Status, domain.ErrJobNotFound)
	default:
		return domain.Report{}, fmt.Errorf("registry returned %s", resp.Status)
	}

	var rep domain.Report
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rep); err != nil {
		return domain.Report{}, fmt.Errorf("decode registry response: %w", err)
	}
	return rep, nil
}
