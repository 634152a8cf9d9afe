// Package sqlite keeps a design's interaction log in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS interactions (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL,
		turn_id        INTEGER NOT NULL,
		query          TEXT NOT NULL,
		response       TEXT NOT NULL,
		timestamp      INTEGER NOT NULL,
		feedback_score INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, timestamp DESC, turn_id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp)`,
}

type interactionRow struct {
	ID            string        `db:"id"`
	SessionID     string        `db:"session_id"`
	TurnID        int           `db:"turn_id"`
	Query         string        `db:"query"`
	Response      string        `db:"response"`
	Timestamp     int64         `db:"timestamp"`
	FeedbackScore sql.NullInt64 `db:"feedback_score"`
}

func (r interactionRow) record() domain.InteractionRecord {
	rec := domain.InteractionRecord{
		ID:        r.ID,
		SessionID: r.SessionID,
		TurnID:    r.TurnID,
		Query:     r.Query,
		Response:  r.Response,
		Timestamp: time.Unix(0, r.Timestamp).UTC(),
	}
	if r.FeedbackScore.Valid {
		s := int(r.FeedbackScore.Int64)
		rec.FeedbackScore = &s
	}
	return rec
}

// InteractionLog is a SQLite-backed interaction log. Writes are serialized;
// reads run concurrently.
type InteractionLog struct {
	db *sqlx.DB
	mu sync.Mutex
}

// Path returns the log file for a design under dataDir.
func Path(dataDir string, design *domain.Design) string {
	return filepath.Join(dataDir, design.ID, design.SQLiteFileName())
}

// Open opens (creating when missing) the log at path and ensures the schema.
func Open(ctx context.Context, path string) (*InteractionLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open interaction log: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &InteractionLog{db: db}, nil
}

func (l *InteractionLog) Append(ctx context.Context, rec *domain.InteractionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var score sql.NullInt64
	if rec.FeedbackScore != nil {
		score = sql.NullInt64{Int64: int64(*rec.FeedbackScore), Valid: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.NamedExecContext(ctx,
		`INSERT INTO interactions (id, session_id, turn_id, query, response, timestamp, feedback_score)
		 VALUES (:id, :session_id, :turn_id, :query, :response, :timestamp, :feedback_score)`,
		interactionRow{
			ID:            rec.ID,
			SessionID:     rec.SessionID,
			TurnID:        rec.TurnID,
			Query:         rec.Query,
			Response:      rec.Response,
			Timestamp:     rec.Timestamp.UnixNano(),
			FeedbackScore: score,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}
	return nil
}

func (l *InteractionLog) Recent(ctx context.Context, sessionID string, limit int) ([]domain.InteractionRecord, error) {
	return l.ListBefore(ctx, sessionID, nil, limit)
}

func (l *InteractionLog) ListBefore(ctx context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		return []domain.InteractionRecord{}, nil
	}

	var rows []interactionRow
	var err error
	if before == nil {
		err = l.db.SelectContext(ctx, &rows,
			`SELECT id, session_id, turn_id, query, response, timestamp, feedback_score
			 FROM interactions WHERE session_id = ?
			 ORDER BY timestamp DESC, turn_id DESC LIMIT ?`,
			sessionID, limit,
		)
	} else {
		ts := before.Timestamp.UnixNano()
		err = l.db.SelectContext(ctx, &rows,
			`SELECT id, session_id, turn_id, query, response, timestamp, feedback_score
			 FROM interactions
			 WHERE session_id = ? AND (timestamp < ? OR (timestamp = ? AND turn_id < ?))
			 ORDER BY timestamp DESC, turn_id DESC LIMIT ?`,
			sessionID, ts, ts, before.TurnID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}

	records := make([]domain.InteractionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (l *InteractionLog) SetFeedback(ctx context.Context, sessionID string, turnID int, score int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`UPDATE interactions SET feedback_score = ? WHERE session_id = ? AND turn_id = ?`,
		score, sessionID, turnID,
	)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInteractionNotFound
	}
	return nil
}

func (l *InteractionLog) LastTurn(ctx context.Context, sessionID string) (int, error) {
	var last int
	err := l.db.GetContext(ctx, &last,
		`SELECT COALESCE(MAX(turn_id), 0) FROM interactions WHERE session_id = ?`,
		sessionID,
	)
	return last, err
}

func (l *InteractionLog) CountOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := l.db.GetContext(ctx, &n,
		`SELECT count(*) FROM interactions WHERE timestamp < ?`,
		cutoff.UnixNano(),
	)
	return n, err
}

func (l *InteractionLog) Close() error {
	return l.db.Close()
}
