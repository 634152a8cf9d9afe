package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func appendTurns(t *testing.T, log *InteractionLog, session string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		rec := domain.NewInteractionRecord(session, i, "q", "r", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, log.Append(context.Background(), rec))
	}
}

func TestInteractionLog_RecentNewestFirst(t *testing.T) {
	log := NewInteractionLog()
	appendTurns(t, log, "s1", 5)

	recent, err := log.Recent(context.Background(), "s1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 5, recent[0].TurnID)
	assert.Equal(t, 4, recent[1].TurnID)
	assert.Equal(t, 3, recent[2].TurnID)
}

func TestInteractionLog_SessionsAreIsolated(t *testing.T) {
	log := NewInteractionLog()
	appendTurns(t, log, "s1", 2)
	appendTurns(t, log, "s2", 4)

	recent, err := log.Recent(context.Background(), "s1", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	for _, rec := range recent {
		assert.Equal(t, "s1", rec.SessionID)
	}

	recent, err = log.Recent(context.Background(), "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestInteractionLog_NonPositiveLimit(t *testing.T) {
	log := NewInteractionLog()
	appendTurns(t, log, "s1", 2)

	recent, err := log.Recent(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestInteractionLog_AppendValidates(t *testing.T) {
	log := NewInteractionLog()
	err := log.Append(context.Background(), domain.NewInteractionRecord("s1", 0, "q", "r", base))
	assert.ErrorIs(t, err, domain.ErrInvalidTurnID)

	err = log.Append(context.Background(), domain.NewInteractionRecord("", 1, "q", "r", base))
	require.Error(t, err)
}

func TestInteractionLog_ListBeforePages(t *testing.T) {
	ctx := context.Background()
	log := NewInteractionLog()
	appendTurns(t, log, "s1", 5)

	page, err := log.ListBefore(ctx, "s1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].TurnID)

	pos := page[1].Position()
	page, err = log.ListBefore(ctx, "s1", &pos, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].TurnID)
	assert.Equal(t, 2, page[1].TurnID)

	pos = page[1].Position()
	page, err = log.ListBefore(ctx, "s1", &pos, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].TurnID)
}

func TestInteractionLog_SameTimestampOrdersByTurn(t *testing.T) {
	ctx := context.Background()
	log := NewInteractionLog()
	for i := 1; i <= 3; i++ {
		require.NoError(t, log.Append(ctx, domain.NewInteractionRecord("s1", i, "q", "r", base)))
	}

	recent, err := log.Recent(ctx, "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, []int{recent[0].TurnID, recent[1].TurnID, recent[2].TurnID})
}

func TestInteractionLog_SetFeedback(t *testing.T) {
	ctx := context.Background()
	log := NewInteractionLog()
	appendTurns(t, log, "s1", 2)

	require.NoError(t, log.SetFeedback(ctx, "s1", 2, 1))

	recent, err := log.Recent(ctx, "s1", 1)
	require.NoError(t, err)
	require.NotNil(t, recent[0].FeedbackScore)
	assert.Equal(t, 1, *recent[0].FeedbackScore)

	*recent[0].FeedbackScore = -1
	again, _ := log.Recent(ctx, "s1", 1)
	assert.Equal(t, 1, *again[0].FeedbackScore)

	err = log.SetFeedback(ctx, "s1", 9, 1)
	assert.ErrorIs(t, err, domain.ErrInteractionNotFound)
}

func TestInteractionLog_LastTurn(t *testing.T) {
	ctx := context.Background()
	log := NewInteractionLog()

	last, err := log.LastTurn(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, last)

	appendTurns(t, log, "s1", 3)
	last, err = log.LastTurn(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, last)
}

func TestInteractionLog_CountOlderThan(t *testing.T) {
	log := NewInteractionLog()
	appendTurns(t, log, "s1", 4)
	appendTurns(t, log, "s2", 1)

	n, err := log.CountOlderThan(context.Background(), base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
