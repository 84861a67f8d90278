package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	domai "github.com/bryanwahyu/knit-tagger/internal/domain/ai"
	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/infra/store/jsonfile"
	"github.com/bryanwahyu/knit-tagger/internal/logging"
	"github.com/bryanwahyu/knit-tagger/internal/middleware"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrRunActive  = errors.New("a run is already in progress")
	ErrBadRequest = errors.New("bad request")
)

// RunFunc runs one analysis batch to completion.
type RunFunc func(ctx context.Context) (domain.Summary, error)

type Options struct {
	StorePath string
	Run       RunFunc
	Metrics   *middleware.Metrics
	Checkers  map[string]middleware.HealthChecker
	RateLimit int // requests per second per client, 0 disables
	Logger    *slog.Logger
	// BaseContext parents background runs; canceling it stops them.
	BaseContext context.Context
}

type Router struct {
	storePath string
	run       RunFunc
	metrics   *middleware.Metrics
	log       *slog.Logger
	baseCtx   context.Context
	checkers  map[string]middleware.HealthChecker
	rateLimit int

	running atomic.Bool
	mu      sync.Mutex
	last    *domain.Summary
	lastErr string
	done    chan struct{}
}

func NewRouter(opts Options) *Router {
	r := &Router{
		storePath: opts.StorePath,
		run:       opts.Run,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		baseCtx:   opts.BaseContext,
		rateLimit: opts.RateLimit,
		checkers:  map[string]middleware.HealthChecker{"store": &middleware.FileHealthChecker{Path: opts.StorePath}},
	}
	for name, c := range opts.Checkers {
		r.checkers[name] = c
	}
	if r.metrics == nil {
		r.metrics = middleware.NewMetrics()
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	if r.baseCtx == nil {
		r.baseCtx = context.Background()
	}
	return r
}

// Handler builds the chi mux with the middleware stack.
func (r *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(r.log))
	mux.Use(r.metrics.Middleware)
	if r.rateLimit > 0 {
		mux.Use(middleware.RateLimitMiddleware(r.rateLimit*2, r.rateLimit))
	}

	mux.Get("/health", middleware.HealthHandler(r.checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", r.metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/results", r.wrap(r.handleList))
		rt.Get("/results/{filename}", r.wrap(r.handleGet))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Post("/runs", r.wrap(r.handleStartRun))
		rt.Get("/runs/current", r.wrap(r.handleCurrentRun))
	})
	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, ErrRunActive):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, ErrBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			default:
				r.log.Error("request failed", "path", req.URL.Path, "err", err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GET /v1/results?limit=&offset=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	limit, err := queryInt(req, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(req, "offset", 0)
	if err != nil {
		return err
	}
	limit = middleware.ValidateLimit(limit)

	store, err := jsonfile.Load(r.storePath)
	if err != nil {
		return err
	}
	all := store.Records()
	page := []domain.KeyedRecord{}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		page = all[offset:end]
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(all),
		"limit":   limit,
		"offset":  offset,
		"results": page,
	})
}

// GET /v1/results/{filename}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	filename := middleware.SanitizeString(chi.URLParam(req, "filename"))
	if err := middleware.ValidateFilename(filename); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	store, err := jsonfile.Load(r.storePath)
	if err != nil {
		return err
	}
	rec, ok := store.FindByFilename(filename)
	if !ok {
		return ErrNotFound
	}
	return writeJSON(w, http.StatusOK, rec)
}

// GET /v1/summary
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	store, err := jsonfile.Load(r.storePath)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"total":          store.Len(),
		"last_timestamp": store.LastTimestamp(),
	})
}

// POST /v1/runs
func (r *Router) handleStartRun(w http.ResponseWriter, req *http.Request) error {
	if r.run == nil {
		return errors.New("runs are not configured")
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunActive
	}
	r.metrics.IncrementRuns()

	done := make(chan struct{})
	r.mu.Lock()
	r.done = done
	r.mu.Unlock()

	// Jalankan di background, request context selesai duluan
	go func() {
		defer close(done)
		defer r.running.Store(false)

		sum, err := r.run(r.baseCtx)
		r.mu.Lock()
		r.last = &sum
		r.lastErr = ""
		if err != nil {
			r.lastErr = err.Error()
		}
		r.mu.Unlock()
		if err != nil {
			r.log.Error("background run failed", "run_id", sum.RunID, "err", err)
			return
		}
		r.log.Info("background run finished", "run_id", sum.RunID, "analyzed", sum.Analyzed, "failed", sum.Failed)
	}()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"message":  "analysis run started in background",
		"queuedAt": time.Now(),
	})
}

// GET /v1/runs/current
func (r *Router) handleCurrentRun(w http.ResponseWriter, req *http.Request) error {
	if r.running.Load() {
		return writeJSON(w, http.StatusOK, map[string]any{
			"running":  true,
			"progress": r.metrics.Last(),
		})
	}
	r.mu.Lock()
	last, lastErr := r.last, r.lastErr
	r.mu.Unlock()
	if last == nil {
		return ErrNotFound
	}
	resp := map[string]any{"running": false, "summary": last}
	if lastErr != "" {
		resp["error"] = lastErr
	}
	return writeJSON(w, http.StatusOK, resp)
}

// Wait blocks until the background run, if any, has finished or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func queryInt(req *http.Request, name string, def int) (int, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Join(ErrBadRequest, errors.New("invalid "+name))
	}
	return n, nil
}
