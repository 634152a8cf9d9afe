// Package memory provides in-process implementations of the knowledge and
// interaction stores. They back tests and ephemeral single-process runs.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/vectorstore"
)

// VectorStore keeps embedded records in insertion order and scores them by
// cosine distance.
type VectorStore struct {
	name    string
	mu      sync.RWMutex
	dims    int
	records []domain.EmbeddedRecord
}

func NewVectorStore(name string) *VectorStore {
	return &VectorStore{name: name}
}

func (s *VectorStore) Name() string {
	return s.name
}

// Insert appends the batch atomically: either every record is stored or none.
func (s *VectorStore) Insert(ctx context.Context, records []domain.EmbeddedRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]domain.EmbeddedRecord, len(records))
	for i, rec := range records {
		rec.Vector = append([]float32(nil), rec.Vector...)
		batch[i] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims, err := vectorstore.CheckBatch(batch, s.dims)
	if err != nil {
		return err
	}
	s.dims = dims
	s.records = append(s.records, batch...)
	return nil
}

// Replace swaps the store's content for the batch.
func (s *VectorStore) Replace(ctx context.Context, records []domain.EmbeddedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := make([]domain.EmbeddedRecord, len(records))
	for i, rec := range records {
		rec.Vector = append([]float32(nil), rec.Vector...)
		batch[i] = rec
	}
	dims, err := vectorstore.CheckBatch(batch, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dims = dims
	s.records = batch
	return nil
}

func (s *VectorStore) Search(vector []float32) *vectorstore.Query {
	return vectorstore.NewQuery(s, vector)
}

func (s *VectorStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// SearchNearest scores every record. Ties keep insertion order.
func (s *VectorStore) SearchNearest(ctx context.Context, vector []float32, limit int) ([]domain.FixedHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims != 0 && len(vector) != s.dims {
		return nil, domain.ErrDimensionMismatch
	}

	hits := make([]domain.FixedHit, 0, len(s.records))
	for _, rec := range s.records {
		hits = append(hits, domain.FixedHit{
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Distance: CosineDistance(vector, rec.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Opener hands out one VectorStore per name for the life of the process.
type Opener struct {
	mu     sync.Mutex
	stores map[string]*VectorStore
}

func NewOpener() *Opener {
	return &Opener{stores: make(map[string]*VectorStore)}
}

func (o *Opener) Open(_ context.Context, name string) (vectorstore.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.stores[name]
	if !ok {
		s = NewVectorStore(name)
		o.stores[name] = s
	}
	return s, nil
}
