package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InteractionRecord is one query/response turn of a session.
// Records are append-only; only FeedbackScore may change after creation.
type InteractionRecord struct {
	ID            string
	SessionID     string
	TurnID        int
	Query         string
	Response      string
	Timestamp     time.Time
	FeedbackScore *int
}

// NewInteractionRecord creates a record stamped with the given time in UTC
func NewInteractionRecord(sessionID string, turnID int, query, response string, now time.Time) *InteractionRecord {
	return &InteractionRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TurnID:    turnID,
		Query:     query,
		Response:  response,
		Timestamp: now.UTC(),
	}
}

// Validate checks the fields every stored record must carry
func (r *InteractionRecord) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return NewDomainError(ErrCodeValidation, "session id is required")
	}
	if r.TurnID < 1 {
		return ErrInvalidTurnID
	}
	return nil
}

// Expired reports whether the record is older than the retention window.
// A non-positive window keeps everything.
func (r *InteractionRecord) Expired(now time.Time, retentionDays int) bool {
	if retentionDays <= 0 {
		return false
	}
	return r.Timestamp.Before(RetentionCutoff(now, retentionDays))
}

// RetentionCutoff returns the instant before which records fall outside the window
func RetentionCutoff(now time.Time, retentionDays int) time.Time {
	return now.UTC().AddDate(0, 0, -retentionDays)
}

// Feedback scores range from -1 (unhelpful) to 1 (helpful)
const (
	MinFeedbackScore = -1
	MaxFeedbackScore = 1
)

// ValidateFeedbackScore rejects scores outside the accepted range
func ValidateFeedbackScore(score int) error {
	if score < MinFeedbackScore || score > MaxFeedbackScore {
		return ErrInvalidFeedbackScore
	}
	return nil
}

// HistoryPosition marks a place in a session's history, ordered by
// timestamp and then turn.
type HistoryPosition struct {
	Timestamp time.Time
	TurnID    int
}

// Position returns the record's place in its session history
func (r *InteractionRecord) Position() HistoryPosition {
	return HistoryPosition{Timestamp: r.Timestamp, TurnID: r.TurnID}
}

// Before reports whether the record sorts strictly before p.
func (r *InteractionRecord) Before(p HistoryPosition) bool {
	if r.Timestamp.Equal(p.Timestamp) {
		return r.TurnID < p.TurnID
	}
	return r.Timestamp.Before(p.Timestamp)
}
