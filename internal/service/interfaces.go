package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/extract"
)

// Embedder turns text into a vector for the given retrieval side.
type Embedder interface {
	Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error)
}

// Generator produces the answer for a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// InteractionLog is the append-only record of a design's conversations.
// Implementations do not enforce turn ordering.
type InteractionLog interface {
	Append(ctx context.Context, rec *domain.InteractionRecord) error
	Recent(ctx context.Context, sessionID string, limit int) ([]domain.InteractionRecord, error)
	ListBefore(ctx context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error)
	SetFeedback(ctx context.Context, sessionID string, turnID int, score int) error
	LastTurn(ctx context.Context, sessionID string) (int, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// TextExtractor recovers plain text from a loaded document.
type TextExtractor interface {
	Extract(ctx context.Context, doc extract.Document, ocrIfNeeded bool) extract.Result
}

// ObjectFetcher downloads s3:// knowledge sources.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}
