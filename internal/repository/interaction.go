package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InteractionRepository stores session interactions for one design.
type InteractionRepository struct {
	db       dbtx
	designID string
}

func NewInteractionRepository(pool *pgxpool.Pool, designID string) *InteractionRepository {
	return &InteractionRepository{db: pool, designID: designID}
}

func (r *InteractionRepository) Append(ctx context.Context, rec *domain.InteractionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO interaction_records (id, design_id, session_id, turn_id, query, response, created_at, feedback_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, r.designID, rec.SessionID, rec.TurnID, rec.Query, rec.Response, rec.Timestamp, rec.FeedbackScore,
	)
	return err
}

func (r *InteractionRepository) Recent(ctx context.Context, sessionID string, limit int) ([]domain.InteractionRecord, error) {
	return r.ListBefore(ctx, sessionID, nil, limit)
}

func (r *InteractionRepository) ListBefore(ctx context.Context, sessionID string, before *domain.HistoryPosition, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		return []domain.InteractionRecord{}, nil
	}

	query := `
		SELECT id, session_id, turn_id, query, response, created_at, feedback_score
		FROM interaction_records
		WHERE design_id = $1 AND session_id = $2`
	args := []any{r.designID, sessionID}

	if before != nil {
		query += " AND (created_at, turn_id) < ($3, $4)"
		args = append(args, before.Timestamp, before.TurnID)
	}

	query += " ORDER BY created_at DESC, turn_id DESC"
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.InteractionRecord, 0, limit)
	for rows.Next() {
		var rec domain.InteractionRecord
		var score pgtype.Int2
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.TurnID, &rec.Query, &rec.Response, &rec.Timestamp, &score); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		if score.Valid {
			s := int(score.Int16)
			rec.FeedbackScore = &s
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *InteractionRepository) SetFeedback(ctx context.Context, sessionID string, turnID int, score int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE interaction_records SET feedback_score = $1
		 WHERE design_id = $2 AND session_id = $3 AND turn_id = $4`,
		score, r.designID, sessionID, turnID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrInteractionNotFound
	}
	return nil
}

func (r *InteractionRepository) LastTurn(ctx context.Context, sessionID string) (int, error) {
	var last int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(turn_id), 0) FROM interaction_records WHERE design_id = $1 AND session_id = $2`,
		r.designID, sessionID,
	).Scan(&last)
	return last, err
}

func (r *InteractionRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM interaction_records WHERE design_id = $1 AND created_at < $2`,
		r.designID, cutoff,
	).Scan(&n)
	return n, err
}

func (r *InteractionRepository) Close() error {
	return nil
}
