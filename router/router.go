// Package router handles one hub query end to end: backend query, matcher,
// reply. Every per-query failure degrades to a not-found reply so a bad
// query never affects the connection.
package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/hubclient"
	"github.com/Gondolav/inventory-connector/matcher"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/metric"
	"github.com/Gondolav/inventory-connector/querier"
)

// Query outcomes, used as the metrics label
const (
	OutcomeFound            = "found"
	OutcomeNotFound         = "not_found"
	OutcomeBackendError     = "backend_error"
	OutcomeMatcherError     = "matcher_error"
	OutcomeTranslationError = "translation_error"
)

// Router implements hubclient.Handler
type Router struct {
	querier      querier.Querier
	matcher      matcher.Matcher
	queryTimeout time.Duration
	metrics      *metric.Metrics
	backend      string
	logger       *slog.Logger
}

var _ hubclient.Handler = (*Router)(nil)

// Option configures a Router
type Option func(*Router)

// WithQueryTimeout bounds the backend query and matcher call of each request
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Router) { r.queryTimeout = d }
}

// WithMetrics records outcomes and latency labelled with the backend kind
func WithMetrics(m *metric.Metrics, backend string) Option {
	return func(r *Router) {
		r.metrics = m
		r.backend = backend
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a router. A nil matcher keeps every candidate.
func New(q querier.Querier, m matcher.Matcher, opts ...Option) *Router {
	if m == nil {
		m = matcher.Passthrough{}
	}
	r := &Router{
		querier: q,
		matcher: m,
		backend: "unknown",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// HandleQuery answers item through reply exactly once
func (r *Router) HandleQuery(ctx context.Context, item message.Item, reply hubclient.Replier) {
	requestID := uuid.NewString()
	logger := r.logger.With("request_id", requestID)
	start := time.Now()

	resp, outcome := r.handle(ctx, item, logger)
	r.metrics.RecordQueryAnswered(r.backend, outcome, time.Since(start))

	if err := reply.Reply(resp); err != nil {
		logger.Debug("Reply not delivered", "outcome", outcome, "error", err)
		return
	}
	logger.Debug("Query answered", "outcome", outcome, "items", len(resp.Items()),
		"duration", time.Since(start))
}

// Handle computes the reply to item and its outcome label without
// replying
func (r *Router) Handle(ctx context.Context, item message.Item) (message.Response, string) {
	return r.handle(ctx, item, r.logger.With("request_id", uuid.NewString()))
}

func (r *Router) handle(ctx context.Context, item message.Item, logger *slog.Logger) (message.Response, string) {
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	logger.Debug("Querying backend", "query", item.Record())

	candidates, err := r.querier.Query(ctx, item)
	if err != nil {
		if errors.Is(err, errs.ErrKeyNotFound) {
			logger.Error("Backend records do not match the field mapping", "error", err)
			return message.NotFound(), OutcomeTranslationError
		}
		r.metrics.RecordBackendError(r.backend)
		logger.Warn("Backend query failed", "error", err, "transient", errs.IsTransient(err))
		return message.NotFound(), OutcomeBackendError
	}
	if len(candidates) == 0 {
		return message.NotFound(), OutcomeNotFound
	}

	matches, err := r.matcher.Match(ctx, item, candidates)
	if err != nil {
		logger.Warn("Matcher failed", "candidates", len(candidates), "error", err)
		return message.NotFound(), OutcomeMatcherError
	}

	resp := message.NewResponse(matches)
	if !resp.Found() {
		return resp, OutcomeNotFound
	}
	return resp, OutcomeFound
}
