package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/knit-tagger/internal/config"
	"github.com/bryanwahyu/knit-tagger/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tagger",
	Short: "tagger analyzes knitwear product photos into structured design attributes.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(configPath)
		if err != nil {
			return err
		}
		cmd.SetContext(withApp(cmd.Context(), a))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a := appFrom(cmd.Context()); a != nil {
			a.closer.Close()
		}
	},
	SilenceUsage: true,
}

func init() {
	def := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", def, "Path to the YAML config file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// App is what every subcommand receives: the loaded config and the logger built from it.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	closer io.Closer
}

type appKey struct{}

func withApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(ctx context.Context) *App {
	a, _ := ctx.Value(appKey{}).(*App)
	return a
}

func setup(path string) (*App, error) {
	if err := config.LoadEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	log, closer, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &App{Config: cfg, Logger: log, closer: closer}, nil
}
