package mysql

import (
	"context"
	"database/sql"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

// Schema creates the image_analysis table.
const Schema = `
CREATE TABLE IF NOT EXISTS image_analysis (
  item_key      VARCHAR(512) NOT NULL PRIMARY KEY,
  filename      VARCHAR(255) NOT NULL,
  analysis_json JSON NOT NULL,
  analyzed_at   VARCHAR(64) NOT NULL,
  updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
);`

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Name() string { return "mysql" }

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Replicate upserts the record under key
func (r *RecordRepository) Replicate(ctx context.Context, key string, rec domain.Record) error {
	const q = `
INSERT INTO image_analysis
  (item_key, filename, analysis_json, analyzed_at)
VALUES (?,?,?,?)
ON DUPLICATE KEY UPDATE
  filename=VALUES(filename), analysis_json=VALUES(analysis_json), analyzed_at=VALUES(analyzed_at);
`
	_, err := r.db.ExecContext(ctx, q,
		key, stringOrDash(rec.Filename), analysisOrEmpty(rec.Analysis), stringOrDash(rec.Timestamp))
	return err
}

// List returns records ordered by key
func (r *RecordRepository) List(ctx context.Context, limit, offset int) ([]domain.KeyedRecord, error) {
	limit, offset = clampPage(limit, offset)
	const q = `
SELECT item_key, filename, analysis_json, analyzed_at
FROM image_analysis
ORDER BY item_key
LIMIT ? OFFSET ?;
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
