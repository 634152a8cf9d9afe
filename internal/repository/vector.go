package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/vectorstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorRepository is a pgvector-backed knowledge collection.
type VectorRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
	name string
	mu   sync.Mutex
}

func NewVectorRepository(pool *pgxpool.Pool, name string) *VectorRepository {
	return &VectorRepository{pool: pool, tx: NewTxRunner(pool), name: name}
}

func (r *VectorRepository) Name() string {
	return r.name
}

// Insert stores the batch in one transaction. The first batch fixes the
// collection's dimension; the collection row is locked for the duration.
func (r *VectorRepository) Insert(ctx context.Context, records []domain.EmbeddedRecord) error {
	if len(records) == 0 {
		return nil
	}
	dims, err := vectorstore.CheckBatch(records, 0)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tx.WithTx(ctx, func(db dbtx) error {
		_, err := db.Exec(ctx,
			`INSERT INTO knowledge_collections (name, dimensions) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			r.name, dims,
		)
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		var stored int
		err = db.QueryRow(ctx,
			`SELECT dimensions FROM knowledge_collections WHERE name = $1 FOR UPDATE`,
			r.name,
		).Scan(&stored)
		if err != nil {
			return fmt.Errorf("failed to lock collection: %w", err)
		}
		if _, err := vectorstore.CheckBatch(records, stored); err != nil {
			return err
		}

		return insertRecords(ctx, db, r.name, records)
	})
}

// Replace drops the collection and stores the batch as its new content in
// one transaction.
func (r *VectorRepository) Replace(ctx context.Context, records []domain.EmbeddedRecord) error {
	dims, err := vectorstore.CheckBatch(records, 0)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tx.WithTx(ctx, func(db dbtx) error {
		if _, err := db.Exec(ctx, `DELETE FROM knowledge_collections WHERE name = $1`, r.name); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if _, err := db.Exec(ctx,
			`INSERT INTO knowledge_collections (name, dimensions) VALUES ($1, $2)`,
			r.name, dims,
		); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return insertRecords(ctx, db, r.name, records)
	})
}

func insertRecords(ctx context.Context, db dbtx, collection string, records []domain.EmbeddedRecord) error {
	for _, rec := range records {
		_, err := db.Exec(ctx,
			`INSERT INTO knowledge_records
				(collection, chunk_id, content, source_name, content_type, extraction_type, chunk_index, chunk_size, total_chunks, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			collection,
			rec.ChunkID,
			rec.Text,
			rec.Metadata.SourceName,
			rec.Metadata.ContentType,
			rec.Metadata.ExtractionType,
			rec.Metadata.ChunkIndex,
			rec.Metadata.ChunkSize,
			rec.Metadata.TotalChunks,
			pgvector.NewVector(rec.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ChunkID, err)
		}
	}
	return nil
}

func (r *VectorRepository) Search(vector []float32) *vectorstore.Query {
	return vectorstore.NewQuery(r, vector)
}

func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM knowledge_records WHERE collection = $1`,
		r.name,
	).Scan(&n)
	return n, err
}

// SearchNearest orders by cosine distance, then by insertion sequence.
func (r *VectorRepository) SearchNearest(ctx context.Context, vector []float32, limit int) ([]domain.FixedHit, error) {
	dims, err := r.dimensions(ctx)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return []domain.FixedHit{}, nil
	}
	if dims != len(vector) {
		return nil, domain.ErrDimensionMismatch
	}

	rows, err := r.pool.Query(ctx,
		`SELECT content, source_name, content_type, extraction_type, chunk_index, chunk_size, total_chunks,
		        embedding <=> $1 AS distance
		 FROM knowledge_records
		 WHERE collection = $2
		 ORDER BY distance ASC, seq ASC
		 LIMIT $3`,
		pgvector.NewVector(vector), r.name, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]domain.FixedHit, 0, limit)
	for rows.Next() {
		var hit domain.FixedHit
		m := &hit.Metadata
		if err := rows.Scan(&hit.Text, &m.SourceName, &m.ContentType, &m.ExtractionType, &m.ChunkIndex, &m.ChunkSize, &m.TotalChunks, &hit.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (r *VectorRepository) dimensions(ctx context.Context) (int, error) {
	var dims int
	err := r.pool.QueryRow(ctx,
		`SELECT dimensions FROM knowledge_collections WHERE name = $1`,
		r.name,
	).Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return dims, err
}

// VectorOpener opens pgvector collections, sharing one repository per name
// so writers in this process serialize on the same mutex.
type VectorOpener struct {
	pool  *pgxpool.Pool
	mu    sync.Mutex
	repos map[string]*VectorRepository
}

func NewVectorOpener(pool *pgxpool.Pool) *VectorOpener {
	return &VectorOpener{pool: pool, repos: make(map[string]*VectorRepository)}
}

func (o *VectorOpener) Open(_ context.Context, name string) (vectorstore.Store, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	repo, ok := o.repos[name]
	if !ok {
		repo = NewVectorRepository(o.pool, name)
		o.repos[name] = repo
	}
	return repo, nil
}
