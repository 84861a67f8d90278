package postgres

import (
	"context"
	"database/sql"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

const Schema = `
CREATE TABLE IF NOT EXISTS image_analysis (
  item_key      TEXT PRIMARY KEY,
  filename      TEXT NOT NULL,
  analysis_json JSONB NOT NULL,
  analyzed_at   TEXT NOT NULL,
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Name() string { return "postgres" }

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Replicate inserts or updates the record under key
func (r *RecordRepository) Replicate(ctx context.Context, key string, rec domain.Record) error {
	const q = `
INSERT INTO image_analysis
  (item_key, filename, analysis_json, analyzed_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (item_key) DO UPDATE SET
  filename=EXCLUDED.filename,
  analysis_json=EXCLUDED.analysis_json,
  analyzed_at=EXCLUDED.analyzed_at,
  updated_at=now();
`
	_, err := r.db.ExecContext(ctx, q, key, stringOrDash(rec.Filename), analysisOrEmpty(rec.Analysis), stringOrDash(rec.Timestamp))
	return err
}

// List returns records ordered by key
func (r *RecordRepository) List(ctx context.Context, limit, offset int) ([]domain.KeyedRecord, error) {
	limit, offset = clampPage(limit, offset)

	const q = `
SELECT item_key, filename, analysis_json, analyzed_at
FROM image_analysis
ORDER BY item_key
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.KeyedRecord
	for rows.Next() {
		var kr domain.KeyedRecord
		var analysis string
		if err := rows.Scan(&kr.Key, &kr.Filename, &analysis, &kr.Timestamp); err != nil {
			return nil, err
		}
		kr.Analysis = []byte(analysis)
		out = append(out, kr)
	}
	return out, rows.Err()
}

func (r *RecordRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM image_analysis`).Scan(&n)
	return n, err
}
