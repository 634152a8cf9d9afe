package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/cloo-solutions/amm/internal/telemetry"
	"github.com/cloo-solutions/amm/internal/vectorstore"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// RetrievalOptions configures a RetrievalEngine.
type RetrievalOptions struct {
	AdaptiveEnabled bool
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
}

// RetrievalEngine reads fixed knowledge and adaptive memory for a query.
// Every failure degrades to an empty result.
type RetrievalEngine struct {
	embedder Embedder
	log      InteractionLog
	opts     RetrievalOptions

	mu    sync.RWMutex
	store vectorstore.Store
}

func NewRetrievalEngine(store vectorstore.Store, embedder Embedder, log InteractionLog, opts RetrievalOptions) *RetrievalEngine {
	return &RetrievalEngine{store: store, embedder: embedder, log: log, opts: opts}
}

// SetStore replaces the fixed knowledge store.
func (r *RetrievalEngine) SetStore(store vectorstore.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

func (r *RetrievalEngine) Store() vectorstore.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store
}

// RetrieveFixed returns up to limit knowledge hits in ascending distance.
func (r *RetrievalEngine) RetrieveFixed(ctx context.Context, query string, limit int) []domain.FixedHit {
	empty := []domain.FixedHit{}
	logger := logging.From(ctx)

	store := r.Store()
	switch {
	case limit <= 0:
		return empty
	case store == nil:
		logger.Warn("fixed knowledge store not available")
		return empty
	case r.embedder == nil:
		logger.Warn("no embedder configured for fixed retrieval")
		return empty
	case strings.TrimSpace(query) == "":
		return empty
	}

	embedCtx, cancel := withTimeout(ctx, r.opts.EmbedTimeout)
	vec, err := r.embedder.Embed(embedCtx, query, domain.TaskQuery)
	cancel()
	if err != nil {
		warn(ctx, goerr.Wrap(err, "failed to embed query", goerr.V("store", store.Name())))
		return empty
	}
	if len(vec) == 0 {
		logger.Warn("query embedding was empty", "store", store.Name())
		return empty
	}

	searchCtx, cancel := withTimeout(ctx, r.opts.SearchTimeout)
	defer cancel()
	hits, err := store.Search(vec).Limit(limit).ToList(searchCtx)
	if err != nil {
		warn(ctx, goerr.Wrap(err, "vector search failed", goerr.V("store", store.Name())))
		return empty
	}
	return hits
}

// RetrieveAdaptive returns the session's most recent interactions, newest first.
func (r *RetrievalEngine) RetrieveAdaptive(ctx context.Context, sessionID string, limit int) []domain.InteractionRecord {
	empty := []domain.InteractionRecord{}
	if limit <= 0 || !r.opts.AdaptiveEnabled || r.log == nil {
		return empty
	}

	records, err := r.log.Recent(ctx, sessionID, limit)
	if err != nil {
		warn(ctx, goerr.Wrap(err, "failed to read interaction log", goerr.V("session_id", sessionID)))
		return empty
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Retrieve runs both reads concurrently. Fixed hits come first in the
// result and the two kinds are never ranked against each other.
func (r *RetrievalEngine) Retrieve(ctx context.Context, sessionID, query string, limit int) domain.RetrievalResult {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanRetrieve, telemetry.SpanAttributes{SessionID: sessionID, Operation: "retrieve"})
	defer span.End()

	var result domain.RetrievalResult
	var g errgroup.Group
	g.Go(func() error {
		result.Fixed = r.RetrieveFixed(ctx, query, limit)
		return nil
	})
	g.Go(func() error {
		result.Adaptive = r.RetrieveAdaptive(ctx, sessionID, limit)
		return nil
	})
	_ = g.Wait()
	return result
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
