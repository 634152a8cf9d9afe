// Package telemetry traces the engine's query path in Sentry. A query is one
// transaction (started by the HTTP middleware or by StartSpan) with child
// spans for ingestion, indexing, retrieval and generation, each tagged with
// the design and session it ran for.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "ammd"
	flushTimeout = 5 * time.Second
	healthRoute  = "GET /health"
)

// Span names used across the service layer.
const (
	SpanIngest       = "ingestion.ingest"
	SpanIndex        = "indexer.index"
	SpanRetrieve     = "retrieval.retrieve"
	SpanProcessQuery = "engine.process_query"
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string `masq:"secret"`
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init starts the Sentry client and returns a flush function. Without a DSN
// tracing stays off and the flush function does nothing.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			return sampleRate(ctx.Span, cfg.TracesSampleRate)
		}),
	})
	if err != nil {
		return func() {}, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampleRate drops health checks and keeps child spans with their parent.
func sampleRate(span *sentry.Span, base float64) float64 {
	if span == nil {
		return base
	}
	if span.Name == healthRoute {
		return 0
	}
	var root sentry.SpanID
	if span.ParentSpanID != root {
		if span.Sampled.Bool() {
			return 1
		}
		return 0
	}
	return base
}

// SpanAttributes tag a span with the design, session and knowledge source it
// ran for. Empty values are not set.
type SpanAttributes struct {
	DesignID  string
	SessionID string
	Source    string
	Operation string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	if a.DesignID != "" {
		span.SetTag("design_id", a.DesignID)
	}
	if a.SessionID != "" {
		span.SetTag("session_id", a.SessionID)
	}
	if a.Source != "" {
		span.SetTag("knowledge_source", a.Source)
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a started engine span. The zero value is safe to use.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// StartSpan opens a child of the span already in ctx, or a new transaction
// when there is none (CLI runs and background work).
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}
