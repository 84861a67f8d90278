package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/infra/httpserver"
	"github.com/bryanwahyu/knit-tagger/internal/middleware"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config).")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port <n>]",
	Short: "Serves the result store over HTTP and runs analyses on request.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd.Context())
		cfg := a.Config
		log := a.Logger
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		// canceled on shutdown, so a background run stops with the server
		runCtx, cancelRuns := context.WithCancel(context.Background())
		defer cancelRuns()

		metrics := middleware.NewMetrics()
		checkers := map[string]middleware.HealthChecker{}
		db, _, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			log.Warn("database health check disabled", "err", err)
		} else if db != nil {
			defer db.Close()
			checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		}

		router := httpserver.NewRouter(httpserver.Options{
			StorePath: cfg.Tagger.StorePath,
			Metrics:   metrics,
			Checkers:  checkers,
			RateLimit: cfg.Server.RateLimit,
			Logger:    log,
			Run: func(ctx context.Context) (domain.Summary, error) {
				p, cl, err := buildProcessor(ctx, cfg, log, metrics)
				if err != nil {
					return domain.Summary{}, err
				}
				defer cl.Close()
				return p.Run(ctx)
			},
			BaseContext: runCtx,
		})

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      router.Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			log.Info("server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		// graceful shutdown
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)
		select {
		case <-stop:
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		}
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown error", "err", err)
		}
		cancelRuns()
		if err := router.Wait(ctx); err != nil {
			log.Warn("background run did not stop in time", "err", err)
		}
		return nil
	},
}
