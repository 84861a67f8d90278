// Package jsonfile keeps the result store as one indented JSON document on disk.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

// ErrAlreadyAnalyzed is returned by Put when the key already holds an analysis.
var ErrAlreadyAnalyzed = errors.New("item already analyzed")

// Store is not safe for concurrent writers.
type Store struct {
	path    string
	records map[string]domain.Record
}

// Load reads the store at path. A missing or empty file gives an empty store;
// malformed JSON is an error and nothing is recovered.
func Load(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]domain.Record)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.records == nil {
		// the document was a literal null
		s.records = make(map[string]domain.Record)
	}
	return s, nil
}

// Opener loads the store at Path for each run.
type Opener struct {
	Path string
}

func (o Opener) Open() (domain.Store, error) {
	s, err := Load(o.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Has reports whether key holds a non-null analysis.
func (s *Store) Has(key string) bool {
	rec, ok := s.records[key]
	return ok && rec.Analyzed()
}

func (s *Store) Get(key string) (domain.Record, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Put adds rec under key in memory. Call Save to make it durable.
func (s *Store) Put(key string, rec domain.Record) error {
	if s.Has(key) {
		return fmt.Errorf("%w: %s", ErrAlreadyAnalyzed, key)
	}
	s.records[key] = rec
	return nil
}

func (s *Store) Len() int { return len(s.records) }

// Keys returns all keys sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns every record with its key, sorted by key.
func (s *Store) Records() []domain.KeyedRecord {
	out := make([]domain.KeyedRecord, 0, len(s.records))
	for _, k := range s.Keys() {
		out = append(out, domain.KeyedRecord{Key: k, Record: s.records[k]})
	}
	return out
}

// FindByFilename returns the first record, in key order, stored for filename.
func (s *Store) FindByFilename(filename string) (domain.KeyedRecord, bool) {
	for _, k := range s.Keys() {
		if rec := s.records[k]; rec.Filename == filename {
			return domain.KeyedRecord{Key: k, Record: rec}, true
		}
	}
	return domain.KeyedRecord{}, false
}

// LastTimestamp is the newest record timestamp, or "" for an empty store.
// Timestamps that do not parse are compared as strings.
func (s *Store) LastTimestamp() string {
	var last string
	var lastT time.Time
	for _, rec := range s.records {
		t, err := time.Parse(domain.TimestampLayout, rec.Timestamp)
		switch {
		case err != nil:
			if lastT.IsZero() && rec.Timestamp > last {
				last = rec.Timestamp
			}
		case t.After(lastT):
			last, lastT = rec.Timestamp, t
		}
	}
	return last
}

// Pending counts the keys that are not analyzed among keys.
func (s *Store) Pending(keys []string) int {
	n := 0
	for _, k := range keys {
		if !s.Has(k) {
			n++
		}
	}
	return n
}

// Marshal renders the document exactly as Save writes it.
func (s *Store) Marshal() ([]byte, error) {
	return json.MarshalIndent(s.records, "", "  ")
}

// Save replaces the file atomically: write a temp file next to it, sync, rename.
func (s *Store) Save() error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return err
	}
	return nil
}
