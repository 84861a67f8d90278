// Package sqlite keeps a local, queryable copy of the result store.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

const Schema = `
CREATE TABLE IF NOT EXISTS image_analysis (
  item_key      TEXT PRIMARY KEY,
  filename      TEXT NOT NULL,
  analysis_json TEXT NOT NULL,
  analyzed_at   TEXT NOT NULL,
  updated_at    TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Open opens (or creates) the database file and its schema. Use ":memory:" in tests.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Name() string { return "sqlite" }

// Replicate upserts the record under key
func (r *RecordRepository) Replicate(ctx context.Context, key string, rec domain.Record) error {
	const q = `
INSERT INTO image_analysis
  (item_key, filename, analysis_json, analyzed_at)
VALUES (?,?,?,?)
ON CONFLICT (item_key) DO UPDATE SET
  filename=excluded.filename,
  analysis_json=excluded.analysis_json,
  analyzed_at=excluded.analyzed_at,
  updated_at=CURRENT_TIMESTAMP;
`
	analysis := string(rec.Analysis)
	if strings.TrimSpace(analysis) == "" {
		analysis = "{}"
	}
	_, err := r.db.ExecContext(ctx, q, key, rec.Filename, analysis, rec.Timestamp)
	return err
}

func (r *RecordRepository) List(ctx context.Context, limit, offset int) ([]domain.KeyedRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT item_key, filename, analysis_json, analyzed_at
FROM image_analysis
ORDER BY item_key
LIMIT ? OFFSET ?;`, limit, offset)
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
