package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(text string, vec ...float32) domain.EmbeddedRecord {
	return domain.EmbeddedRecord{
		ChunkID:  "text_" + text,
		Vector:   vec,
		Text:     text,
		Metadata: domain.ChunkMetadata{SourceName: text + ".txt", ContentType: domain.SourceTypeText},
	}
}

func TestVectorStore_SearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")

	require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{
		record("far", 0, 1),
		record("near", 1, 0),
		record("middle", 1, 1),
	}))

	hits, err := store.Search([]float32{1, 0}).Limit(3).ToList(ctx)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "near", hits[0].Text)
	assert.Equal(t, "middle", hits[1].Text)
	assert.Equal(t, "far", hits[2].Text)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, hits[2].Distance, 1e-9)
	assert.Equal(t, "near.txt", hits[0].Metadata.SourceName)
}

func TestVectorStore_LimitTruncates(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{record(fmt.Sprint(i), float32(i+1), 1)}))
	}

	hits, err := store.Search([]float32{1, 1}).Limit(4).ToList(ctx)
	require.NoError(t, err)
	assert.Len(t, hits, 4)

	hits, err = store.Search([]float32{1, 1}).Limit(0).ToList(ctx)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStore_EqualDistancesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{
		record("first", 2, 0),
		record("second", 4, 0),
		record("third", 1, 0),
	}))

	hits, err := store.Search([]float32{1, 0}).Limit(3).ToList(ctx)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{hits[0].Text, hits[1].Text, hits[2].Text})
}

func TestVectorStore_EmptyStore(t *testing.T) {
	hits, err := NewVectorStore("kb").Search([]float32{1, 0}).Limit(5).ToList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStore_InsertIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{record("a", 1, 0)}))

	err := store.Insert(ctx, []domain.EmbeddedRecord{
		record("b", 1, 1),
		record("c", 1, 1, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorStore_ReplaceSwapsContent(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{record("a", 1, 0), record("b", 0, 1)}))

	require.NoError(t, store.Replace(ctx, []domain.EmbeddedRecord{record("c", 0, 0, 1)}))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := store.Search([]float32{0, 0, 1}).ToList(ctx)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Text)

	err = store.Replace(ctx, []domain.EmbeddedRecord{record("d", 1), record("e", 1, 1)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	n, _ = store.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestVectorStore_RejectsEmptyVector(t *testing.T) {
	store := NewVectorStore("kb")
	err := store.Insert(context.Background(), []domain.EmbeddedRecord{record("a")})
	require.Error(t, err)

	n, _ := store.Count(context.Background())
	assert.Zero(t, n)
}

func TestVectorStore_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{record("a", 1, 0)}))

	_, err := store.Search([]float32{1, 0, 0}).ToList(ctx)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestVectorStore_InsertCopiesVectors(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")
	rec := record("a", 1, 0)
	require.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{rec}))

	rec.Vector[0] = 0
	rec.Vector[1] = 1

	hits, err := store.Search([]float32{1, 0}).Limit(1).ToList(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
}

func TestVectorStore_ConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore("kb")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Insert(ctx, []domain.EmbeddedRecord{record(fmt.Sprint(i), 1, float32(i))}))
		}(i)
		go func() {
			defer wg.Done()
			_, err := store.Search([]float32{1, 1}).Limit(3).ToList(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 2.0, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
}

func TestOpener_ReturnsSameStoreForName(t *testing.T) {
	ctx := context.Background()
	opener := NewOpener()

	a, err := opener.Open(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, a.Insert(ctx, []domain.EmbeddedRecord{record("x", 1)}))

	b, err := opener.Open(ctx, "kb")
	require.NoError(t, err)
	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other, err := opener.Open(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "other", other.Name())
	n, _ = other.Count(ctx)
	assert.Zero(t, n)
}
