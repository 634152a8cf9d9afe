// Package vectorstore defines the contract shared by the knowledge stores.
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloo-solutions/amm/internal/domain"
)

// DefaultLimit applies when a query does not set one.
const DefaultLimit = 5

// Store holds the embedded records of one named collection. Implementations
// serialize writers and make each Insert atomic; readers may run concurrently.
type Store interface {
	Name() string
	Insert(ctx context.Context, records []domain.EmbeddedRecord) error
	Search(vector []float32) *Query
	Count(ctx context.Context) (int, error)
}

// Replacer is implemented by stores that can swap their whole content in
// one step. The batch may change the collection's dimension.
type Replacer interface {
	Replace(ctx context.Context, records []domain.EmbeddedRecord) error
}

// Opener opens a store by name, creating it when missing.
type Opener interface {
	Open(ctx context.Context, name string) (Store, error)
}

// Searcher runs a nearest-neighbour lookup. Hits must carry the cosine
// distance; ordering is normalized by Query.
type Searcher interface {
	SearchNearest(ctx context.Context, vector []float32, limit int) ([]domain.FixedHit, error)
}

// Query is a pending similarity search: store.Search(v).Limit(n).ToList(ctx).
type Query struct {
	searcher Searcher
	vector   []float32
	limit    int
}

func NewQuery(searcher Searcher, vector []float32) *Query {
	return &Query{searcher: searcher, vector: vector, limit: DefaultLimit}
}

// Limit caps the number of hits returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// ToList executes the query. Hits come back in ascending distance order;
// equal distances keep the order the searcher produced them in.
func (q *Query) ToList(ctx context.Context) ([]domain.FixedHit, error) {
	if q.limit <= 0 || len(q.vector) == 0 {
		return []domain.FixedHit{}, nil
	}

	hits, err := q.searcher.SearchNearest(ctx, q.vector, q.limit)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > q.limit {
		hits = hits[:q.limit]
	}
	return hits, nil
}

// CheckBatch verifies every record has a vector of the same dimension.
// dims is the store's established dimension, 0 when the store is empty.
// It returns the batch dimension.
func CheckBatch(records []domain.EmbeddedRecord, dims int) (int, error) {
	for i, rec := range records {
		if rec.Dimensions() == 0 {
			return 0, fmt.Errorf("record %d has no vector", i)
		}
		if dims == 0 {
			dims = rec.Dimensions()
		}
		if rec.Dimensions() != dims {
			return 0, domain.NewDomainErrorWithCause(domain.ErrDimensionMismatch.Code, domain.ErrDimensionMismatch.Message,
				fmt.Errorf("record %d has %d dimensions, expected %d", i, rec.Dimensions(), dims))
		}
	}
	return dims, nil
}
