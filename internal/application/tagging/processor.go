package tagging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/knit-tagger/internal/application"
	"github.com/bryanwahyu/knit-tagger/internal/domain/ai"
	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/logging"
)

// DefaultPacing is the pause after every successful item.
const DefaultPacing = time.Second

// Processor runs the resumable batch: skip what the store already has, analyze the rest,
// persist the whole store after every success.
// One Processor run owns the store file; runs must not overlap.
type Processor struct {
	Store    domain.StoreOpener
	Source   domain.Source
	Analyzer domain.Analyzer

	Category string
	Pacing   time.Duration
	// StopOnQuota ends the run at the first quota outcome instead of moving on.
	StopOnQuota bool

	Replicas  []domain.Replica
	Reporters []domain.ProgressReporter

	Clock  application.Clock
	Logger *slog.Logger
	NewID  func() string
}

// Run processes every pending item once. Only a store that cannot be loaded or saved,
// or a source that cannot be listed, makes it return an error.
func (p *Processor) Run(ctx context.Context) (domain.Summary, error) {
	clock := p.clock()
	sum := domain.Summary{RunID: p.newID(), Started: clock.Now()}
	log := p.logger().With("run_id", sum.RunID)

	store, err := p.Store.Open()
	if err != nil {
		return sum, fmt.Errorf("load result store: %w", err)
	}
	items, err := p.Source.List()
	if err != nil {
		return sum, fmt.Errorf("list items: %w", err)
	}
	sum.Total = len(items)
	log.Info("found images to analyze", "count", len(items), "stored", store.Len())

	for _, item := range items {
		if ctx.Err() != nil {
			sum.Stopped = string(domain.ReasonCanceled)
			break
		}
		p.report(ctx, log, sum, item.Key)

		if store.Has(item.Key) {
			sum.Add(domain.Outcome{Item: item, Status: domain.StatusSkipped})
			log.Debug("skipping already analyzed image", "key", item.Key)
			continue
		}

		log.Info("analyzing image", "key", item.Key)
		out := p.ProcessItem(ctx, item)
		sum.Add(out)
		if out.Failed() {
			log.Warn("image analysis failed",
				"key", item.Key, "reason", out.Reason, "duration", out.Duration, "err", out.Err)
			if out.Reason == domain.ReasonCanceled {
				sum.Stopped = string(domain.ReasonCanceled)
				break
			}
			if out.Reason == domain.ReasonQuota && p.StopOnQuota {
				sum.Stopped = string(domain.ReasonQuota)
				break
			}
			continue
		}

		if err := store.Put(item.Key, *out.Record); err != nil {
			return sum, fmt.Errorf("store result for %s: %w", item.Key, err)
		}
		if err := store.Save(); err != nil {
			return sum, fmt.Errorf("persist result store after %s: %w", item.Key, err)
		}
		log.Info("image analyzed", "key", item.Key, "duration", out.Duration)

		p.replicate(ctx, log, item.Key, *out.Record)

		if err := clock.Sleep(ctx, p.pacing()); err != nil {
			sum.Stopped = string(domain.ReasonCanceled)
			break
		}
	}

	sum.Finished = clock.Now()
	p.report(context.WithoutCancel(ctx), log, sum, "")
	log.Info("analysis complete",
		"total", sum.Total, "analyzed", sum.Analyzed, "skipped", sum.Skipped,
		"failed", sum.Failed, "stopped", sum.Stopped)
	return sum, nil
}

// ProcessItem analyzes one item. It never returns a nil-reason failure.
func (p *Processor) ProcessItem(ctx context.Context, item domain.Item) domain.Outcome {
	clock := p.clock()
	start := clock.Now()
	raw, err := p.Analyzer.AnalyzeFile(ctx, item.Key, p.Category)
	out := domain.Outcome{Item: item, Duration: clock.Now().Sub(start)}
	if err != nil {
		out.Status = domain.StatusFailed
		out.Reason = classify(ctx, err)
		out.Err = err
		return out
	}
	rec := domain.NewRecord(item, raw, clock.Now())
	if !rec.Analyzed() {
		// a null analysis would make the key look pending forever
		out.Status = domain.StatusFailed
		out.Reason = domain.ReasonMalformed
		out.Err = ai.ErrEmptyResponse
		return out
	}
	out.Status = domain.StatusAnalyzed
	out.Record = &rec
	return out
}

func classify(ctx context.Context, err error) domain.Reason {
	var readErr *ai.ReadError
	switch {
	case errors.As(err, &readErr):
		return domain.ReasonRead
	case errors.Is(err, ai.ErrQuotaExceeded):
		return domain.ReasonQuota
	case errors.Is(err, ai.ErrMalformedResponse), errors.Is(err, ai.ErrEmptyResponse):
		return domain.ReasonMalformed
	case ctx.Err() != nil:
		return domain.ReasonCanceled
	default:
		return domain.ReasonAnalysis
	}
}

func (p *Processor) replicate(ctx context.Context, log *slog.Logger, key string, rec domain.Record) {
	for _, r := range p.Replicas {
		if err := r.Replicate(ctx, key, rec); err != nil {
			log.Warn("replica write failed", "replica", r.Name(), "key", key, "err", err)
		}
	}
}

func (p *Processor) report(ctx context.Context, log *slog.Logger, sum domain.Summary, current string) {
	if len(p.Reporters) == 0 {
		return
	}
	prog := domain.Progress{Summary: sum, Current: current, UpdatedAt: p.clock().Now()}
	for _, r := range p.Reporters {
		if err := r.Report(ctx, prog); err != nil {
			log.Debug("progress report failed", "err", err)
		}
	}
}

func (p *Processor) clock() application.Clock {
	if p.Clock == nil {
		return application.SystemClock{}
	}
	return p.Clock
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.Discard()
	}
	return p.Logger
}

func (p *Processor) pacing() time.Duration {
	if p.Pacing < 0 {
		return 0
	}
	return p.Pacing
}

func (p *Processor) newID() string {
	if p.NewID == nil {
		return uuid.NewString()
	}
	return p.NewID()
}
