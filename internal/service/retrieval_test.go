package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/memory"
	"github.com/cloo-solutions/amm/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, records ...domain.EmbeddedRecord) vectorstore.Store {
	t.Helper()
	store, err := memory.NewOpener().Open(context.Background(), "kb")
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), records))
	return store
}

func record(text string, vec ...float32) domain.EmbeddedRecord {
	return domain.EmbeddedRecord{
		ChunkID:  domain.NewChunkID(domain.SourceTypeText),
		Vector:   vec,
		Text:     text,
		Metadata: domain.ChunkMetadata{SourceName: "kb.txt", ContentType: domain.SourceTypeText},
	}
}

func TestRetrievalEngine_RetrieveFixed_OrderedByDistance(t *testing.T) {
	store := seededStore(t,
		record("far", 0, 1),
		record("near", 1, 0),
		record("middle", 1, 1),
	)
	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, "question", domain.TaskQuery).Return([]float32{1, 0}, nil)

	engine := NewRetrievalEngine(store, embedder, nil, RetrievalOptions{})
	hits := engine.RetrieveFixed(context.Background(), "question", 2)

	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Text)
	assert.Equal(t, "middle", hits[1].Text)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	embedder.AssertExpectations(t)
}

func TestRetrievalEngine_RetrieveFixed_SoftFailures(t *testing.T) {
	store := seededStore(t, record("doc", 1, 0))

	tests := []struct {
		name  string
		setup func(*MockEmbedder)
		store vectorstore.Store
		query string
		limit int
	}{
		{name: "zero limit", store: store, query: "q", limit: 0},
		{name: "no store", store: nil, query: "q", limit: 3},
		{name: "blank query", store: store, query: "  ", limit: 3},
		{
			name:  "embedding error",
			store: store, query: "q", limit: 3,
			setup: func(m *MockEmbedder) {
				m.On("Embed", mock.Anything, "q", domain.TaskQuery).Return(nil, errors.New("quota exceeded"))
			},
		},
		{
			name:  "empty embedding",
			store: store, query: "q", limit: 3,
			setup: func(m *MockEmbedder) {
				m.On("Embed", mock.Anything, "q", domain.TaskQuery).Return([]float32{}, nil)
			},
		},
		{
			name:  "dimension mismatch",
			store: store, query: "q", limit: 3,
			setup: func(m *MockEmbedder) {
				m.On("Embed", mock.Anything, "q", domain.TaskQuery).Return([]float32{1, 0, 0}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := new(MockEmbedder)
			if tt.setup != nil {
				tt.setup(embedder)
			}
			engine := NewRetrievalEngine(tt.store, embedder, nil, RetrievalOptions{})
			hits := engine.RetrieveFixed(context.Background(), tt.query, tt.limit)
			assert.NotNil(t, hits)
			assert.Empty(t, hits)
		})
	}
}

func TestRetrievalEngine_RetrieveFixed_NoEmbedder(t *testing.T) {
	engine := NewRetrievalEngine(seededStore(t, record("doc", 1)), nil, nil, RetrievalOptions{})
	assert.Empty(t, engine.RetrieveFixed(context.Background(), "q", 3))
}

func TestRetrievalEngine_RetrieveAdaptive(t *testing.T) {
	ctx := context.Background()
	log := memory.NewInteractionLog()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		require.NoError(t, log.Append(ctx, domain.NewInteractionRecord("s1", i, "q", "r", base.Add(time.Duration(i)*time.Minute))))
	}

	t.Run("newest first within limit", func(t *testing.T) {
		engine := NewRetrievalEngine(nil, nil, log, RetrievalOptions{AdaptiveEnabled: true})
		got := engine.RetrieveAdaptive(ctx, "s1", 2)
		require.Len(t, got, 2)
		assert.Equal(t, 4, got[0].TurnID)
		assert.Equal(t, 3, got[1].TurnID)
	})

	t.Run("disabled", func(t *testing.T) {
		engine := NewRetrievalEngine(nil, nil, log, RetrievalOptions{AdaptiveEnabled: false})
		assert.Empty(t, engine.RetrieveAdaptive(ctx, "s1", 2))
	})

	t.Run("no log", func(t *testing.T) {
		engine := NewRetrievalEngine(nil, nil, nil, RetrievalOptions{AdaptiveEnabled: true})
		assert.Empty(t, engine.RetrieveAdaptive(ctx, "s1", 2))
	})

	t.Run("unknown session", func(t *testing.T) {
		engine := NewRetrievalEngine(nil, nil, log, RetrievalOptions{AdaptiveEnabled: true})
		assert.Empty(t, engine.RetrieveAdaptive(ctx, "other", 2))
	})
}

func TestRetrievalEngine_Retrieve_CombinesBoth(t *testing.T) {
	ctx := context.Background()
	log := memory.NewInteractionLog()
	require.NoError(t, log.Append(ctx, domain.NewInteractionRecord("s1", 1, "earlier question", "earlier answer", time.Now())))

	embedder := new(MockEmbedder)
	embedder.On("Embed", mock.Anything, "question", domain.TaskQuery).Return([]float32{1, 0}, nil)

	engine := NewRetrievalEngine(seededStore(t, record("doc", 1, 0)), embedder, log, RetrievalOptions{AdaptiveEnabled: true})
	result := engine.Retrieve(ctx, "s1", "question", 3)

	require.Len(t, result.Fixed, 1)
	require.Len(t, result.Adaptive, 1)
	assert.False(t, result.IsEmpty())

	block := result.Context()
	assert.Less(t, strings.Index(block, "doc"), strings.Index(block, "earlier question"))
}

func TestRetrievalEngine_SetStore(t *testing.T) {
	engine := NewRetrievalEngine(nil, nil, nil, RetrievalOptions{})
	assert.Nil(t, engine.Store())

	store := seededStore(t, record("doc", 1))
	engine.SetStore(store)
	assert.Equal(t, store, engine.Store())
}
