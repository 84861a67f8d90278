// Package export turns the result store into a flat sheet, one row per image.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

// fixed leading columns
var baseColumns = []string{"key", "filename", "timestamp"}

// Sheet is the flattened table.
type Sheet struct {
	Columns []string
	Rows    [][]string
}

// Flatten builds a sheet from records. Analysis attributes become dotted columns
// (design.silhouette.primary_style); arrays are joined with ", ".
func Flatten(records []domain.KeyedRecord) (Sheet, error) {
	flat := make([]map[string]string, len(records))
	seen := map[string]struct{}{}

	for i, rec := range records {
		m := map[string]string{}
		if rec.Analyzed() {
			var v any
			if err := json.Unmarshal(rec.Analysis, &v); err != nil {
				return Sheet{}, fmt.Errorf("analysis for %s: %w", rec.Key, err)
			}
			flattenValue("", v, m)
		}
		for k := range m {
			seen[k] = struct{}{}
		}
		flat[i] = m
	}

	attrs := make([]string, 0, len(seen))
	for k := range seen {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	sheet := Sheet{Columns: append(append([]string{}, baseColumns...), attrs...)}
	for i, rec := range records {
		row := []string{rec.Key, rec.Filename, rec.Timestamp}
		for _, a := range attrs {
			row = append(row, flat[i][a])
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func flattenValue(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flattenValue(join(prefix, k), child, out)
		}
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				b, _ := json.Marshal(item)
				parts = append(parts, string(b))
			default:
				parts = append(parts, scalar(item))
			}
		}
		out[prefix] = strings.Join(parts, ", ")
	default:
		out[prefix] = scalar(t)
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
