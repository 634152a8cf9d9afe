package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
)

// InteractionLog keeps session histories in memory.
type InteractionLog struct {
	mu       sync.RWMutex
	sessions map[string][]domain.InteractionRecord
}

func NewInteractionLog() *InteractionLog {
	return &InteractionLog{sessions: make(map[string][]domain.InteractionRecord)}
}

func (l *InteractionLog) Append(_ context.Context, rec *domain.InteractionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	stored := *rec
	if rec.FeedbackScore != nil {
		score := *rec.FeedbackScore
		stored.FeedbackScore = &score
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[rec.SessionID] = append(l.sessions[rec.SessionID], stored)
	return nil
}

func (l *InteractionLog) Recent(ctx context.Context, sessionID string, limit int) ([]domain.InteractionRecord, error) {
	return l.ListBefore(ctx, sessionID, nil, limit)
}

// ListBefore returns up to limit records older than before, newest first.
// A nil position starts from the newest record.
func (l *InteractionLog) ListBefore(_ context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		return []domain.InteractionRecord{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.InteractionRecord, 0, limit)
	for _, rec := range l.sessions[sessionID] {
		if before != nil && !rec.Before(*before) {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].TurnID > out[j].TurnID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *InteractionLog) SetFeedback(_ context.Context, sessionID string, turnID int, score int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.sessions[sessionID]
	for i := range records {
		if records[i].TurnID == turnID {
			s := score
			records[i].FeedbackScore = &s
			return nil
		}
	}
	return domain.ErrInteractionNotFound
}

func (l *InteractionLog) LastTurn(_ context.Context, sessionID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	last := 0
	for _, rec := range l.sessions[sessionID] {
		last = max(last, rec.TurnID)
	}
	return last, nil
}

func (l *InteractionLog) CountOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, records := range l.sessions {
		for _, rec := range records {
			if rec.Timestamp.Before(cutoff) {
				n++
			}
		}
	}
	return n, nil
}

func (l *InteractionLog) Close() error {
	return nil
}

func copyRecord(rec domain.InteractionRecord) domain.InteractionRecord {
	if rec.FeedbackScore != nil {
		score := *rec.FeedbackScore
		rec.FeedbackScore = &score
	}
	return rec
}
