package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/cloo-solutions/amm/internal/telemetry"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTrackedSessions bounds the per-session turn cache.
const DefaultTrackedSessions = 10000

// EngineDeps wires an Engine. Embedder, Generator and Log may be nil; the
// engine then degrades the way retrieval does.
type EngineDeps struct {
	Ingestion       *IngestionService
	Indexer         *KnowledgeIndexer
	Embedder        Embedder
	Generator       Generator
	Log             InteractionLog
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	Now             func() time.Time
	// TrackedSessions caps how many sessions keep their last turn in
	// memory. Zero means DefaultTrackedSessions.
	TrackedSessions int
}

// QueryResult is the outcome of one processed query.
type QueryResult struct {
	Response  string                 `json:"response"`
	SessionID string                 `json:"session_id"`
	TurnID    int                    `json:"turn_id"`
	Timestamp time.Time              `json:"timestamp"`
	Retrieval domain.RetrievalResult `json:"-"`
}

// Capabilities reports which memory kinds an engine can serve.
type Capabilities struct {
	FixedKnowledge bool `json:"fixed_knowledge"`
	AdaptiveMemory bool `json:"adaptive_memory"`
	Generation     bool `json:"generation"`
}

// EngineInfo describes a running engine.
type EngineInfo struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	KnowledgeSources int          `json:"knowledge_sources"`
	Capabilities     Capabilities `json:"capabilities"`
}

// Engine is one design brought to life: fixed knowledge indexed at start,
// adaptive memory read and written per query.
type Engine struct {
	design          *domain.Design
	ingestion       *IngestionService
	indexer         *KnowledgeIndexer
	retrieval       *RetrievalEngine
	generator       Generator
	log             InteractionLog
	generateTimeout time.Duration
	now             func() time.Time

	mu      sync.Mutex
	turns   *lru.Cache[string, int]
	sources int
}

// NewEngine validates the design and indexes its knowledge sources,
// replacing whatever the design's store held before. Sources that cannot be
// loaded are logged and skipped.
func NewEngine(ctx context.Context, design *domain.Design, deps EngineDeps) (*Engine, error) {
	if design == nil {
		return nil, domain.NewConfigError("design is required")
	}
	design.ApplyDefaults()
	if err := design.Validate(); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid design", err)
	}
	if deps.Ingestion == nil || deps.Indexer == nil {
		return nil, domain.NewConfigError("ingestion and indexer are required")
	}

	tracked := deps.TrackedSessions
	if tracked <= 0 {
		tracked = DefaultTrackedSessions
	}
	turns, err := lru.New[string, int](tracked)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid session cache size", err)
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	log := deps.Log
	if !design.AdaptiveMemory.Enabled {
		log = nil
	}

	e := &Engine{
		design:          design,
		ingestion:       deps.Ingestion,
		indexer:         deps.Indexer,
		generator:       deps.Generator,
		log:             log,
		generateTimeout: deps.GenerateTimeout,
		now:             now,
		turns:           turns,
	}
	e.retrieval = NewRetrievalEngine(nil, deps.Embedder, log, RetrievalOptions{
		AdaptiveEnabled: design.AdaptiveMemory.Enabled,
		EmbedTimeout:    deps.EmbedTimeout,
		SearchTimeout:   deps.SearchTimeout,
	})

	ctx = logging.With(ctx, logging.From(ctx).With("design_id", design.ID))
	if len(design.KnowledgeSources) == 0 {
		logging.From(ctx).Info("no knowledge sources defined, fixed knowledge store not created")
		return e, nil
	}

	var chunks []domain.KnowledgeChunk
	for _, src := range design.KnowledgeSources {
		got, err := e.ingestion.Ingest(ctx, src)
		if err != nil {
			logging.From(ctx).Warn("failed to ingest knowledge source", "source", src.DisplayName(), "error", err)
			continue
		}
		chunks = append(chunks, got...)
		e.sources++
	}

	store, _ := e.indexer.Rebuild(ctx, design.ID, chunks)
	e.retrieval.SetStore(store)
	return e, nil
}

func (e *Engine) Design() *domain.Design {
	return e.design
}

func (e *Engine) WelcomeMessage() string {
	return e.design.Prompts.WelcomeMessage
}

func (e *Engine) SystemInstruction() string {
	return e.design.Prompts.SystemInstruction
}

func (e *Engine) Info() EngineInfo {
	e.mu.Lock()
	sources := e.sources
	e.mu.Unlock()

	return EngineInfo{
		ID:               e.design.ID,
		Name:             e.design.Name,
		Description:      e.design.Description,
		KnowledgeSources: sources,
		Capabilities: Capabilities{
			FixedKnowledge: e.retrieval.Store() != nil,
			AdaptiveMemory: e.log != nil,
			Generation:     e.generator != nil,
		},
	}
}

// Retrieve gathers context without generating. A non-positive limit uses
// the design's retrieval limit.
func (e *Engine) Retrieve(ctx context.Context, sessionID, query string, limit int) domain.RetrievalResult {
	if limit <= 0 {
		limit = e.design.AdaptiveMemory.RetrievalLimit
	}
	return e.retrieval.Retrieve(ctx, sessionID, query, limit)
}

// ProcessQuery retrieves context, generates an answer and records the turn.
func (e *Engine) ProcessQuery(ctx context.Context, sessionID, query string) (*QueryResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "session id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}
	if e.generator == nil {
		return nil, domain.ErrGeneratorUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanProcessQuery, telemetry.SpanAttributes{
		DesignID:  e.design.ID,
		SessionID: sessionID,
		Operation: "process_query",
	})
	defer span.End()

	retrieval := e.Retrieve(ctx, sessionID, query, 0)

	genCtx, cancel := withTimeout(ctx, e.generateTimeout)
	response, err := e.generator.Generate(genCtx, domain.GenerationRequest{
		SystemInstruction: e.design.Prompts.SystemInstruction,
		Prompt:            BuildPrompt(query, retrieval),
		Model:             e.design.Model,
	})
	cancel()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	turn, err := e.lastTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := e.record(ctx, sessionID, turn+1, query, response)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Response:  response,
		SessionID: sessionID,
		TurnID:    rec.TurnID,
		Timestamp: rec.Timestamp,
		Retrieval: retrieval,
	}, nil
}

// RecordInteraction stores a turn produced outside ProcessQuery. Turn ids
// must increase within a session.
func (e *Engine) RecordInteraction(ctx context.Context, sessionID string, turnID int, query, response string) (*domain.InteractionRecord, error) {
	if turnID < 1 {
		return nil, domain.ErrInvalidTurnID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	last, err := e.lastTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if turnID <= last {
		return nil, domain.NewDomainErrorWithCause(domain.ErrNonIncreasingTurn.Code, domain.ErrNonIncreasingTurn.Message,
			fmt.Errorf("session %s: turn %d after %d", sessionID, turnID, last))
	}
	return e.record(ctx, sessionID, turnID, query, response)
}

// SetFeedback scores a recorded turn.
func (e *Engine) SetFeedback(ctx context.Context, sessionID string, turnID, score int) error {
	if err := domain.ValidateFeedbackScore(score); err != nil {
		return err
	}
	if e.log == nil {
		return domain.ErrInteractionNotFound
	}
	return e.log.SetFeedback(ctx, sessionID, turnID, score)
}

// History pages through a session newest first. A nil position starts at
// the newest record.
func (e *Engine) History(ctx context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error) {
	if e.log == nil || limit <= 0 {
		return []domain.InteractionRecord{}, nil
	}
	return e.log.ListBefore(ctx, sessionID, before, limit)
}

// AddKnowledgeSource ingests one more source into the design's store.
func (e *Engine) AddKnowledgeSource(ctx context.Context, src domain.KnowledgeSource) (IndexReport, error) {
	chunks, err := e.ingestion.Ingest(ctx, src)
	if err != nil {
		return IndexReport{}, err
	}

	store, report := e.indexer.Index(ctx, e.design.ID, chunks)
	if store != nil && e.retrieval.Store() == nil {
		e.retrieval.SetStore(store)
	}

	e.mu.Lock()
	e.sources++
	e.mu.Unlock()
	return report, nil
}

// ExpiredInteractions counts records past the design's retention window.
// Nothing is deleted.
func (e *Engine) ExpiredInteractions(ctx context.Context) (int, error) {
	if e.log == nil {
		return 0, nil
	}
	cutoff := domain.RetentionCutoff(e.now(), e.design.AdaptiveMemory.RetentionPolicyDays)
	return e.log.CountOlderThan(ctx, cutoff)
}

// lastTurn must be called with e.mu held. An evicted session is reloaded
// from the log; without a log it starts over at turn zero.
func (e *Engine) lastTurn(ctx context.Context, sessionID string) (int, error) {
	if last, ok := e.turns.Get(sessionID); ok {
		return last, nil
	}
	if e.log == nil {
		return 0, nil
	}
	last, err := e.log.LastTurn(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to read last turn: %w", err)
	}
	e.turns.Add(sessionID, last)
	return last, nil
}

// record must be called with e.mu held.
func (e *Engine) record(ctx context.Context, sessionID string, turnID int, query, response string) (*domain.InteractionRecord, error) {
	rec := domain.NewInteractionRecord(sessionID, turnID, query, response, e.now())
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if e.log != nil {
		if err := e.log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record interaction: %w", err)
		}
	}
	e.turns.Add(sessionID, turnID)
	return rec, nil
}
