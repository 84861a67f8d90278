package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/knit-tagger/internal/config"
	redisprogress "github.com/bryanwahyu/knit-tagger/internal/infra/progress/redis"
	"github.com/bryanwahyu/knit-tagger/internal/infra/store/jsonfile"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows how much of the images directory is already analyzed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd.Context())
		cfg := a.Config

		store, err := jsonfile.Load(cfg.Tagger.StorePath)
		if err != nil {
			return fmt.Errorf("load result store: %w", err)
		}
		src, err := newSource(cfg.Tagger)
		if err != nil {
			return err
		}
		items, err := src.List()
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		keys := make([]string, 0, len(items))
		for _, it := range items {
			keys = append(keys, it.Key)
		}

		last := store.LastTimestamp()
		if last == "" {
			last = "-"
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Metric", "Value"})
		t.AppendRows([]table.Row{
			{"Result store", cfg.Tagger.StorePath},
			{"Records", store.Len()},
			{"Candidate images", len(items)},
			{"Pending", store.Pending(keys)},
			{"Last analyzed", last},
		})

		db, repo, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			a.Logger.Warn("database unavailable", "err", err)
		} else if repo != nil {
			defer db.Close()
			n, err := repo.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count %s records: %w", repo.Name(), err)
			}
			t.AppendRow(table.Row{"Replica records (" + repo.Name() + ")", n})
		}
		if cfg.Redis.Addr != "" {
			appendProgress(cmd.Context(), t, cfg, a.Logger)
		}
		t.Render()
		return nil
	},
}

func appendProgress(ctx context.Context, t table.Writer, cfg *config.Config, log *slog.Logger) {
	rep, err := redisprogress.NewReporter(ctx, redisprogress.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Key:      cfg.Redis.Key,
	})
	if err != nil {
		log.Warn("redis unavailable", "err", err)
		return
	}
	defer rep.Close()

	p, ok, err := rep.Latest(ctx)
	if err != nil {
		log.Warn("read progress", "err", err)
		return
	}
	if !ok {
		return
	}
	state := "running"
	if !p.Finished.IsZero() {
		state = "finished"
	}
	t.AppendRows([]table.Row{
		{"Last run", fmt.Sprintf("%s (%s)", p.RunID, state)},
		{"Last run progress", fmt.Sprintf("%d/%d, %d failed", p.Done(), p.Total, p.Failed)},
	})
}
