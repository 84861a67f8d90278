package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

// Metrics stores application metrics and the last run progress report.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	RunsTotal          uint64
	StartTime          time.Time

	mu   sync.Mutex
	last domain.Progress
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// IncrementRuns counts a started analysis run
func (m *Metrics) IncrementRuns() {
	atomic.AddUint64(&m.RunsTotal, 1)
}

// Report implements tagging.ProgressReporter
func (m *Metrics) Report(_ context.Context, p domain.Progress) error {
	m.mu.Lock()
	m.last = p
	m.mu.Unlock()
	return nil
}

// Last returns the most recent progress report
func (m *Metrics) Last() domain.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	last := m.Last()

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"runs_total":           atomic.LoadUint64(&m.RunsTotal),
		"last_run": map[string]interface{}{
			"run_id":   last.RunID,
			"total":    last.Total,
			"analyzed": last.Analyzed,
			"skipped":  last.Skipped,
			"failed":   last.Failed,
			"current":  last.Current,
		},
		"uptime_seconds": time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		// Wrap response writer to capture status
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		// Track success/failure based on status code
		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
