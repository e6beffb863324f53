// Package main is the entry point for the liquorstock background worker.
// It archives closed months and sweeps expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"liquorstock/internal/app"
	"liquorstock/internal/config"
	appctx "liquorstock/internal/core/context"
	"liquorstock/internal/infrastructure/storage/postgres"
	"liquorstock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting liquorstock worker", "driver", cfg.Driver, "archive_interval", cfg.ArchiveCheckInterval)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	w := &Worker{app: a, log: log.WithComponent("worker")}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic jobs.
type Worker struct {
	app *app.App
	log *logger.Logger
}

// Run archives on start and then every ArchiveCheckInterval until ctx ends.
func (w *Worker) Run(ctx context.Context) {
	archiveTicker := time.NewTicker(w.app.Config.ArchiveCheckInterval)
	defer archiveTicker.Stop()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	w.archive(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-archiveTicker.C:
			w.archive(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) archive(ctx context.Context) {
	ctx = appctx.EnsureTrace(ctx, "worker")
	res, err := w.app.Archiver.RunDue(ctx)
	if err != nil {
		w.log.WithContext(ctx).Errorw("archive run finished with errors", "error", err, "archived", len(res))
		return
	}
	if len(res) > 0 {
		w.log.WithContext(ctx).Infow("archive run finished", "archived", len(res))
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	ctx = appctx.EnsureTrace(ctx, "worker")
	if pool := w.app.PgPool(); pool != nil {
		postgres.LogPoolStats(ctx, pool)
	}
	if w.app.Idempotency == nil {
		return
	}
	n, err := w.app.Idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.WithContext(ctx).Warnw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.WithContext(ctx).Infow("cleaned up idempotency keys", "count", n)
	}
}
