package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"solrouter/internal/config"
	"solrouter/internal/engine"
	"solrouter/internal/hub"
	"solrouter/internal/httpapi"
	"solrouter/internal/queue"
	"solrouter/internal/router"
	"solrouter/internal/store"
	"solrouter/internal/util"
	"solrouter/internal/venue"
)

func main() {
	cfgPath := "config/solrouter.yaml"
	if p := os.Getenv("SOLROUTER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	for _, path := range []string{cfg.Storage.SQLitePath, cfg.Storage.QueuePath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Error("creating data directory", "path", path, "error", err)
			os.Exit(1)
		}
	}

	orders, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("opening order store", "error", err)
		os.Exit(1)
	}
	defer orders.Close()

	q, err := queue.Open(cfg.Storage.QueuePath, queue.Options{
		Concurrency:  cfg.Queue.Concurrency,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		BackoffBase:  cfg.Queue.BackoffBase.Std(),
		PollInterval: cfg.Queue.PollInterval.Std(),
	}, logger)
	if err != nil {
		logger.Error("opening queue", "error", err)
		os.Exit(1)
	}
	defer q.Close()

	venues := make([]venue.Venue, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		venues = append(venues, venue.NewSim(venue.SimConfig{
			Name:         vc.Name,
			Fee:          vc.Fee,
			PriceMin:     vc.PriceMin,
			PriceMax:     vc.PriceMax,
			Perturbation: vc.Perturbation,
			QuoteDelay:   vc.QuoteDelay.Std(),
		}))
	}

	rtr, err := router.New(venues, router.Config{
		ExecDelay:     cfg.Router.ExecDelay.Std(),
		ExecJitterMax: cfg.Router.ExecJitterMax.Std(),
		SlippageMax:   cfg.Router.SlippageMax,
	}, logger)
	if err != nil {
		logger.Error("building router", "error", err)
		os.Exit(1)
	}

	h := hub.New(logger)
	archive := store.NewParquetArchive(cfg.Storage.ArchiveDir)
	eng := engine.New(orders, q, archive, logger)
	proc := engine.NewProcessor(rtr, h, orders, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	q.Start(ctx, proc.Handle)

	api := httpapi.NewServer(eng, h, logger)
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "venues", len(venues))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	// Queue.Close waits for in-flight jobs; interrupted jobs are recovered
	// to waiting on the next start.
	if err := q.Close(); err != nil {
		logger.Error("queue shutdown", "error", err)
	}
	logger.Info("stopped")
}
