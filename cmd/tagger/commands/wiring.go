package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/bryanwahyu/knit-tagger/internal/application"
	appai "github.com/bryanwahyu/knit-tagger/internal/application/ai"
	apptagging "github.com/bryanwahyu/knit-tagger/internal/application/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/config"
	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/knit-tagger/internal/infra/db/mysql"
	"github.com/bryanwahyu/knit-tagger/internal/infra/db/postgres"
	"github.com/bryanwahyu/knit-tagger/internal/infra/db/sqlite"
	redisprogress "github.com/bryanwahyu/knit-tagger/internal/infra/progress/redis"
	"github.com/bryanwahyu/knit-tagger/internal/infra/source/fsdir"
	minioStore "github.com/bryanwahyu/knit-tagger/internal/infra/storage"
	"github.com/bryanwahyu/knit-tagger/internal/infra/store/jsonfile"
)

// closers collects everything a command opened.
type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].Close()
	}
}

func newSource(cfg config.Tagger) (*fsdir.Source, error) {
	return fsdir.New(fsdir.Options{
		Dir:        cfg.ImagesDir,
		Pattern:    cfg.Pattern,
		Extension:  cfg.Extension,
		IgnoreFile: cfg.IgnoreFile,
	})
}

// openDatabase connects the configured SQL replica. nil, nil when none is configured.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, domain.RecordRepository, error) {
	switch cfg.Database.Driver {
	case "":
		return nil, nil, nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect error: %w", err)
		}
		repo := mysqlp.NewRecordRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("mysql schema: %w", err)
		}
		return db, repo, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect error: %w", err)
		}
		repo := postgres.NewRecordRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return db, repo, nil
	case "sqlite":
		path := cfg.Database.Path
		if path == "" {
			path = "tagger.db"
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open error: %w", err)
		}
		return db, sqlite.NewRecordRepository(db), nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openMinio(ctx context.Context, cfg config.Minio) (*minioStore.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := minioStore.New(ctx, minioStore.Options{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.BucketName,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Prefix:    cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("minio init error: %w", err)
	}
	return store, nil
}

// buildProcessor wires the processor from config. Optional replicas and reporters that
// cannot connect are logged and left out; the JSON store alone is enough to run.
func buildProcessor(ctx context.Context, cfg *config.Config, log *slog.Logger, extra ...domain.ProgressReporter) (*apptagging.Processor, closers, error) {
	var cl closers

	src, err := newSource(cfg.Tagger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	client := openai.NewClient(openai.Options{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Detail:      cfg.OpenAI.Detail,
		Timeout:     cfg.OpenAI.Timeout,
	})

	p := &apptagging.Processor{
		Store:       jsonfile.Opener{Path: cfg.Tagger.StorePath},
		Source:      src,
		Analyzer:    appai.NewService(client),
		Category:    cfg.Tagger.Category,
		Pacing:      cfg.Tagger.Pacing,
		StopOnQuota: cfg.Tagger.StopOnQuota,
		Reporters:   extra,
		Clock:       application.SystemClock{},
		Logger:      log,
	}

	db, repo, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Warn("database replica disabled", "driver", cfg.Database.Driver, "err", err)
	} else if repo != nil {
		cl = append(cl, db)
		p.Replicas = append(p.Replicas, repo)
	}

	store, err := openMinio(ctx, cfg.Minio)
	if err != nil {
		log.Warn("minio replica disabled", "err", err)
	} else if store != nil {
		p.Replicas = append(p.Replicas, store)
	}

	if cfg.Redis.Addr != "" {
		rep, err := redisprogress.NewReporter(ctx, redisprogress.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			log.Warn("redis progress disabled", "err", err)
		} else {
			cl = append(cl, rep)
			p.Reporters = append(p.Reporters, rep)
		}
	}
	return p, cl, nil
}
