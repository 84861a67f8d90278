package tagging

import (
	"context"
	"encoding/json"
)

// Store is the resumable result store owned by one run.
type Store interface {
	Has(key string) bool
	Put(key string, rec Record) error
	Save() error
	Len() int
}

// StoreOpener loads the store at the start of a run.
type StoreOpener interface {
	Open() (Store, error)
}

// Source lists the candidate items.
type Source interface {
	List() ([]Item, error)
}

// Analyzer turns one image file into structured JSON.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path, category string) (json.RawMessage, error)
}

// Replica receives a copy of every new record. The JSON store stays the source of truth.
type Replica interface {
	Name() string
	Replicate(ctx context.Context, key string, rec Record) error
}

// ProgressReporter publishes run progress somewhere visible.
type ProgressReporter interface {
	Report(ctx context.Context, p Progress) error
}

// RecordRepository is a queryable replica.
type RecordRepository interface {
	Replica
	List(ctx context.Context, limit, offset int) ([]KeyedRecord, error)
	Count(ctx context.Context) (int, error)
}
