// Package redis publishes run progress as a JSON document under one Redis key.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

// DefaultKey holds the progress document when no key is configured.
const DefaultKey = "tagger:progress"

type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Reporter implements tagging.ProgressReporter.
type Reporter struct {
	rdb *redis.Client
	key string
}

// NewReporter connects and pings Redis.
func NewReporter(ctx context.Context, opts Options) (*Reporter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewReporterWithClient(rdb, opts.Key), nil
}

// NewReporterWithClient wraps an existing client.
func NewReporterWithClient(rdb *redis.Client, key string) *Reporter {
	if key == "" {
		key = DefaultKey
	}
	return &Reporter{rdb: rdb, key: key}
}

// Report overwrites the progress document.
func (r *Reporter) Report(ctx context.Context, p domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, data, 0).Err()
}

// Latest reads the last published progress. ok is false when nothing was published.
func (r *Reporter) Latest(ctx context.Context) (p domain.Progress, ok bool, err error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, false, err
	}
	return p, true, nil
}

func (r *Reporter) Close() error {
	return r.rdb.Close()
}
