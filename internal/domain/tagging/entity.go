package tagging

import (
	"bytes"
	"encoding/json"
	"time"
)

// Item is one image waiting to be analyzed. Key is the path the store remembers it by.
type Item struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// Record is the stored result for one item. Analysis is kept verbatim.
type Record struct {
	Analysis  json.RawMessage `json:"analysis"`
	Timestamp string          `json:"timestamp"`
	Filename  string          `json:"filename"`
}

// TimestampLayout is the ISO-8601 layout used for Record.Timestamp.
const TimestampLayout = time.RFC3339Nano

// NewRecord builds a record stamped at now.
func NewRecord(item Item, analysis json.RawMessage, now time.Time) Record {
	return Record{
		Analysis:  analysis,
		Timestamp: now.Format(TimestampLayout),
		Filename:  item.Filename,
	}
}

// Analyzed reports whether the record holds a non-null analysis.
func (r Record) Analyzed() bool {
	trimmed := bytes.TrimSpace(r.Analysis)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// KeyedRecord is a record together with its store key, as listed by repositories.
type KeyedRecord struct {
	Key string `json:"key"`
	Record
}
