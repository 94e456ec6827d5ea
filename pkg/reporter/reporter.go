package reporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"extjob/pkg/document"
	"extjob/pkg/endpoint"
	"extjob/pkg/logger"
	"extjob/pkg/metrics"
	"extjob/pkg/models"
	tracing "extjob/pkg/observability"
	"extjob/pkg/resilience"
)

// DefaultTimeout bounds a single post when the caller supplies no client.
const DefaultTimeout = 30 * time.Second

const contentType = "application/xml"

// Doer is the subset of *http.Client the reporter needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config wires a Reporter. Only Endpoint.Host is required.
type Config struct {
	Endpoint endpoint.Config
	// Client overrides the HTTP transport. Timeout is ignored when set.
	Client  Doer
	Timeout time.Duration
	Logger  *zap.Logger
	Tracer  trace.Tracer
	// Breaker, when set, skips posts while the CI server is unreachable.
	Breaker *resilience.Breaker
}

// Reporter posts build results to a CI server's external-job API.
type Reporter struct {
	endpoint *endpoint.Endpoint
	client   Doer
	log      *zap.Logger
	tracer   trace.Tracer
	breaker  *resilience.Breaker
}

// New validates cfg and returns a Reporter. A missing host fails here,
// before any request can be made.
func New(cfg Config) (*Reporter, error) {
	ep, err := endpoint.New(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracing.InstrumentationName)
	}

	return &Reporter{
		endpoint: ep,
		client:   client,
		log:      log.With(zap.String("ci_server", ep.BaseURL())),
		tracer:   tracer,
		breaker:  cfg.Breaker,
	}, nil
}

// Endpoint returns the resolver the reporter posts through.
func (r *Reporter) Endpoint() *endpoint.Endpoint {
	return r.endpoint
}

// Post reports a run for job. Configuration and validation problems are
// returned; transport failures are logged with the target URL and payload
// and swallowed, so a CI outage never fails the calling pipeline.
func (r *Reporter) Post(ctx context.Context, job string, report models.RunReport) error {
	err := r.Deliver(ctx, job, report)

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return nil
	}
	return err
}

// Deliver is Post without the safety net: a *TransportError is returned
// (and still logged) instead of swallowed.
func (r *Reporter) Deliver(ctx context.Context, job string, report models.RunReport) error {
	if err := validate(job, report); err != nil {
		return err
	}

	target, err := r.endpoint.Resolve(job)
	if err != nil {
		return err
	}

	report.Encoding = report.Encoding.OrDefault()
	doc := document.Build(report)
	requestID := uuid.NewString()

	ctx, span := r.tracer.Start(ctx, "reporter.post", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("extjob.job", job),
		attribute.Int("extjob.result", report.Result),
		attribute.String("http.url", target.URL),
		attribute.String("extjob.request_id", requestID),
	)

	log := r.log.With(
		zap.String("job", job),
		zap.String("url", target.URL),
		zap.String("request_id", requestID),
	)

	if r.breaker != nil {
		if err := r.breaker.Allow(); err != nil {
			metrics.RecordPost(metrics.OutcomeSkipped, 0, doc.Len())
			return r.fail(ctx, log, &TransportError{URL: target.URL, Payload: doc.String(), Err: err})
		}
	}

	start := time.Now()
	status, err := r.send(ctx, target.URL, requestID, doc)
	elapsed := time.Since(start)

	if r.breaker != nil {
		if err != nil && ctx.Err() != nil {
			// Caller cancellation is not a CI server failure.
			r.breaker.Release()
		} else {
			r.breaker.Record(err)
		}
	}

	if err != nil {
		metrics.RecordPost(metrics.OutcomeFailed, elapsed.Seconds(), doc.Len())
		return r.fail(ctx, log, &TransportError{URL: target.URL, Payload: doc.String(), Err: err})
	}

	metrics.RecordPost(metrics.OutcomeDelivered, elapsed.Seconds(), doc.Len())
	metrics.RecordResponse(status)
	tracing.SetAttributes(ctx, attribute.Int("http.status_code", status))

	fields := []zap.Field{
		zap.Int("status", status),
		zap.Int("result", report.Result),
		zap.Duration("elapsed", elapsed),
	}
	if status >= http.StatusMultipleChoices {
		log.Warn("CI server answered with non-success status", fields...)
	} else {
		log.Info("build result posted", fields...)
	}
	return nil
}

func (r *Reporter) send(ctx context.Context, url, requestID string, doc document.Document) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(doc.Bytes()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the body is never inspected.
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (r *Reporter) fail(ctx context.Context, log *zap.Logger, err *TransportError) error {
	tracing.SetError(ctx, err)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())

	log.Error("failed to post build result",
		zap.String("payload", err.Payload),
		zap.Error(err.Err),
	)
	return err
}

func validate(job string, report models.RunReport) error {
	if strings.TrimSpace(job) == "" {
		return &ValidationError{Field: "job", Message: "is required"}
	}
	if report.DurationMillis != nil && *report.DurationMillis < 0 {
		return &ValidationError{Field: "duration", Message: "must not be negative"}
	}
	return nil
}
