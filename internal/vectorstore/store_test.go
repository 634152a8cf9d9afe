package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchNearest(ctx context.Context, vector []float32, limit int) ([]domain.FixedHit, error) {
	args := m.Called(ctx, vector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FixedHit), args.Error(1)
}

func TestQuery_ToListSortsAndTruncates(t *testing.T) {
	searcher := new(MockSearcher)
	vec := []float32{0.1, 0.2}
	searcher.On("SearchNearest", mock.Anything, vec, 2).Return([]domain.FixedHit{
		{Text: "far", Distance: 0.9},
		{Text: "first tie", Distance: 0.2},
		{Text: "second tie", Distance: 0.2},
	}, nil)

	hits, err := NewQuery(searcher, vec).Limit(2).ToList(context.Background())

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first tie", hits[0].Text)
	assert.Equal(t, "second tie", hits[1].Text)
	searcher.AssertExpectations(t)
}

func TestQuery_DefaultLimit(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("SearchNearest", mock.Anything, mock.Anything, DefaultLimit).Return([]domain.FixedHit{}, nil)

	_, err := NewQuery(searcher, []float32{1}).ToList(context.Background())

	require.NoError(t, err)
	searcher.AssertExpectations(t)
}

func TestQuery_NonPositiveLimitSkipsSearch(t *testing.T) {
	searcher := new(MockSearcher)

	hits, err := NewQuery(searcher, []float32{1}).Limit(0).ToList(context.Background())

	require.NoError(t, err)
	assert.Empty(t, hits)
	searcher.AssertNotCalled(t, "SearchNearest", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuery_PropagatesSearchError(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("SearchNearest", mock.Anything, mock.Anything, 3).Return(nil, errors.New("connection refused"))

	hits, err := NewQuery(searcher, []float32{1}).Limit(3).ToList(context.Background())

	assert.Error(t, err)
	assert.Nil(t, hits)
}

func TestCheckBatch(t *testing.T) {
	recs := []domain.EmbeddedRecord{{Vector: []float32{1, 2}}, {Vector: []float32{3, 4}}}

	dims, err := CheckBatch(recs, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, dims)

	_, err = CheckBatch(recs, 3)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = CheckBatch([]domain.EmbeddedRecord{{Vector: []float32{1}}, {}}, 0)
	assert.Error(t, err)
}
