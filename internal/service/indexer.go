package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/cloo-solutions/amm/internal/telemetry"
	"github.com/cloo-solutions/amm/internal/vectorstore"
	"github.com/m-mizutani/goerr/v2"
)

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Total    int `json:"total"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
}

// KnowledgeIndexer embeds chunks and stores them as one batch.
type KnowledgeIndexer struct {
	embedder     Embedder
	opener       vectorstore.Opener
	embedTimeout time.Duration
}

// NewKnowledgeIndexer creates an indexer. A zero embedTimeout leaves each
// embedding call bounded only by the caller's context.
func NewKnowledgeIndexer(embedder Embedder, opener vectorstore.Opener, embedTimeout time.Duration) *KnowledgeIndexer {
	return &KnowledgeIndexer{embedder: embedder, opener: opener, embedTimeout: embedTimeout}
}

// Index embeds every chunk with the document task type and inserts the
// successes into the store called name. It returns a nil store when nothing
// could be embedded or the store could not be written; neither is an error.
func (ix *KnowledgeIndexer) Index(ctx context.Context, name string, chunks []domain.KnowledgeChunk) (vectorstore.Store, IndexReport) {
	return ix.index(ctx, name, chunks, false)
}

// Rebuild is Index for a store that should hold only these chunks. Stores
// implementing vectorstore.Replacer drop their previous content in the same
// step; others are appended to.
func (ix *KnowledgeIndexer) Rebuild(ctx context.Context, name string, chunks []domain.KnowledgeChunk) (vectorstore.Store, IndexReport) {
	return ix.index(ctx, name, chunks, true)
}

func (ix *KnowledgeIndexer) index(ctx context.Context, name string, chunks []domain.KnowledgeChunk, replace bool) (vectorstore.Store, IndexReport) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanIndex, telemetry.SpanAttributes{DesignID: name, Operation: "index"})
	defer span.End()

	logger := logging.From(ctx)
	report := IndexReport{Total: len(chunks)}

	if ix.embedder == nil {
		logger.Warn("no embedder configured, knowledge not indexed", "store", name)
		report.Skipped = len(chunks)
		return nil, report
	}

	records := make([]domain.EmbeddedRecord, 0, len(chunks))
	dims := 0
	for _, chunk := range chunks {
		vec, err := ix.embed(ctx, chunk.Text)
		if err == nil && len(vec) == 0 {
			err = goerr.New("empty embedding")
		}
		if err == nil && dims != 0 && len(vec) != dims {
			err = goerr.Wrap(domain.ErrDimensionMismatch, "embedding dimension changed",
				goerr.V("got", len(vec)), goerr.V("expected", dims))
		}
		if err != nil {
			warn(ctx, goerr.Wrap(err, "skipping chunk",
				goerr.V("chunk_id", chunk.ID),
				goerr.V("chunk_index", chunk.Metadata.ChunkIndex),
				goerr.V("source", chunk.Metadata.SourceName),
			))
			report.Skipped++
			continue
		}

		dims = len(vec)
		records = append(records, domain.EmbeddedRecord{
			ChunkID:  chunk.ID,
			Vector:   vec,
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
		})
	}

	if len(records) == 0 {
		logger.Warn("no chunks embedded, vector store not created", "store", name, "chunks", len(chunks))
		return nil, report
	}

	store, err := ix.opener.Open(ctx, name)
	if err != nil {
		warn(ctx, goerr.Wrap(err, "failed to open vector store", goerr.V("store", name)))
		report.Skipped = report.Total
		return nil, report
	}
	write := store.Insert
	if r, ok := store.(vectorstore.Replacer); ok && replace {
		write = r.Replace
	}
	if err := write(ctx, records); err != nil {
		warn(ctx, goerr.Wrap(err, "failed to insert records", goerr.V("store", name), goerr.V("records", len(records))))
		report.Skipped = report.Total
		return nil, report
	}

	report.Embedded = len(records)
	logger.Info("knowledge indexed", "store", name, "embedded", report.Embedded, "skipped", report.Skipped)
	return store, report
}

func (ix *KnowledgeIndexer) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, ix.embedTimeout)
	defer cancel()
	return ix.embedder.Embed(ctx, text, domain.TaskDocument)
}

func warn(ctx context.Context, err error) {
	logging.From(ctx).Warn(err.Error(), "error", err)
}
