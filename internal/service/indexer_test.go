package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/memory"
	"github.com/cloo-solutions/amm/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingOpener struct{}

func (failingOpener) Open(context.Context, string) (vectorstore.Store, error) {
	return nil, errors.New("disk full")
}

func textChunks(texts ...string) []domain.KnowledgeChunk {
	return domain.BuildChunks(domain.SourceTypeText, "notes.txt", domain.ExtractionText, texts)
}

func TestKnowledgeIndexer_Index_Success(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockEmbedder)
	opener := memory.NewOpener()
	ix := NewKnowledgeIndexer(embedder, opener, 0)

	embedder.On("Embed", mock.Anything, "alpha", domain.TaskDocument).Return([]float32{1, 0}, nil)
	embedder.On("Embed", mock.Anything, "beta", domain.TaskDocument).Return([]float32{0, 1}, nil)

	store, report := ix.Index(ctx, "design-1", textChunks("alpha", "beta"))
	require.NotNil(t, store)
	assert.Equal(t, IndexReport{Total: 2, Embedded: 2}, report)
	assert.Equal(t, "design-1", store.Name())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := store.Search([]float32{1, 0}).Limit(1).ToList(ctx)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alpha", hits[0].Text)
	assert.Equal(t, "notes.txt", hits[0].Metadata.SourceName)
	assert.Equal(t, 2, hits[0].Metadata.TotalChunks)
	embedder.AssertExpectations(t)
}

func TestKnowledgeIndexer_Rebuild(t *testing.T) {
	ctx := context.Background()
	embedder := &keywordEmbedder{vocab: []string{"alpha", "beta"}}
	opener := memory.NewOpener()
	ix := NewKnowledgeIndexer(embedder, opener, 0)

	_, report := ix.Index(ctx, "kb", textChunks("alpha", "beta"))
	require.Equal(t, 2, report.Embedded)

	store, report := ix.Index(ctx, "kb", textChunks("alpha again"))
	require.NotNil(t, store)
	assert.Equal(t, 1, report.Embedded)
	n, _ := store.Count(ctx)
	assert.Equal(t, 3, n)

	store, report = ix.Rebuild(ctx, "kb", textChunks("beta only"))
	require.NotNil(t, store)
	assert.Equal(t, IndexReport{Total: 1, Embedded: 1}, report)
	n, _ = store.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestKnowledgeIndexer_Index_SkipsFailedChunks(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockEmbedder)
	ix := NewKnowledgeIndexer(embedder, memory.NewOpener(), 0)

	embedder.On("Embed", mock.Anything, "ok", domain.TaskDocument).Return([]float32{1, 0}, nil)
	embedder.On("Embed", mock.Anything, "broken", domain.TaskDocument).Return(nil, errors.New("rate limited"))
	embedder.On("Embed", mock.Anything, "empty", domain.TaskDocument).Return([]float32{}, nil)
	embedder.On("Embed", mock.Anything, "wide", domain.TaskDocument).Return([]float32{1, 0, 0}, nil)

	store, report := ix.Index(ctx, "kb", textChunks("ok", "broken", "empty", "wide"))
	require.NotNil(t, store)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 3, report.Skipped)

	n, _ := store.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestKnowledgeIndexer_Index_AllEmbeddingsFail(t *testing.T) {
	ctx := context.Background()
	embedder := new(MockEmbedder)
	opener := memory.NewOpener()
	ix := NewKnowledgeIndexer(embedder, opener, 0)

	embedder.On("Embed", mock.Anything, mock.Anything, domain.TaskDocument).Return(nil, errors.New("down"))

	store, report := ix.Index(ctx, "kb", textChunks("a", "b"))
	assert.Nil(t, store)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 2, report.Skipped)

	engine := NewRetrievalEngine(store, embedder, nil, RetrievalOptions{})
	assert.Empty(t, engine.RetrieveFixed(ctx, "anything", 5))
}

func TestKnowledgeIndexer_Index_NoChunks(t *testing.T) {
	ix := NewKnowledgeIndexer(new(MockEmbedder), memory.NewOpener(), 0)
	store, report := ix.Index(context.Background(), "kb", nil)
	assert.Nil(t, store)
	assert.Zero(t, report.Total)
}

func TestKnowledgeIndexer_Index_NoEmbedder(t *testing.T) {
	ix := NewKnowledgeIndexer(nil, memory.NewOpener(), 0)
	store, report := ix.Index(context.Background(), "kb", textChunks("a"))
	assert.Nil(t, store)
	assert.Equal(t, 1, report.Skipped)
}

func TestKnowledgeIndexer_Index_OpenFailure(t *testing.T) {
	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, mock.Anything, domain.TaskDocument).Return([]float32{1}, nil)

	ix := NewKnowledgeIndexer(embedder, failingOpener{}, 0)
	store, report := ix.Index(context.Background(), "kb", textChunks("a"))
	assert.Nil(t, store)
	assert.Zero(t, report.Embedded)
}

func TestKnowledgeIndexer_Index_DimensionMismatchWithExistingStore(t *testing.T) {
	ctx := context.Background()
	opener := memory.NewOpener()
	existing, err := opener.Open(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, existing.Insert(ctx, []domain.EmbeddedRecord{{ChunkID: "x", Vector: []float32{1, 0, 0}, Text: "x"}}))

	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, mock.Anything, domain.TaskDocument).Return([]float32{1, 0}, nil)

	store, report := NewKnowledgeIndexer(embedder, opener, 0).Index(ctx, "kb", textChunks("a", "b"))
	assert.Nil(t, store)
	assert.Zero(t, report.Embedded)

	n, _ := existing.Count(ctx)
	assert.Equal(t, 1, n)
}
