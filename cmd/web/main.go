package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"picmatch/internal/config"
	"picmatch/internal/game"
	"picmatch/internal/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dataset, err := loadDataset(cfg)
	if err != nil {
		logger.Fatal("Failed to load dataset", zap.String("file", cfg.DataFile), zap.Error(err))
	}
	logger.Info("Dataset loaded",
		zap.Int("words", len(dataset.Words)),
		zap.Int("rewards", len(dataset.RewardImages)),
	)

	store, err := game.NewStore(game.StoreConfig{
		Dataset:      dataset,
		AdvanceDelay: cfg.AdvanceDelay,
		SessionTTL:   cfg.SessionTTL,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Failed to create session store", zap.Error(err))
	}

	_ = mime.AddExtensionType(".css", "text/css")
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		logger.Fatal("Failed to open static files", zap.Error(err))
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:           store,
		DefaultLanguage: cfg.DefaultLanguage,
		Logger:          logger,
		Static:          staticFS,
		AssetsDir:       cfg.AssetsDir,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Open streams only end when their session closes, so drop every
	// session as soon as shutdown starts.
	server.RegisterOnShutdown(store.Close)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.SessionTTL > 0 {
		go store.RunSweeper(sweepCtx, sweepInterval(cfg.SessionTTL))
	}

	go func() {
		logger.Info("Listening", zap.String("addr", "http://localhost"+cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server exited", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zcfg.Build()
}

func sweepInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 4; interval > time.Second {
		return interval
	}
	return time.Second
}

func loadDataset(cfg *config.Config) (*game.Dataset, error) {
	if cfg.DataFile == "" {
		return game.DefaultDataset()
	}
	return game.LoadDatasetFile(cfg.DataFile)
}

//go:embed static/*
var embeddedStatic embed.FS
