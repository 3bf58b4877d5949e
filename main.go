package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/api"
	"inkwell/config"
	"inkwell/database"
	"inkwell/storage"

	"github.com/golang-cz/devslog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Loading configuration", "error", err)
		os.Exit(1)
	}

	configLogger(cfg.Debug)

	if err := database.Init(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.Debug); err != nil {
		slog.Error("Initializing database", "error", err)
		os.Exit(1)
	}

	var uploads storage.ObjectStorage
	if cfg.StorageEndpoint != "" {
		uploads, err = storage.NewMinio(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageBaseURL,
			cfg.StorageUseSSL,
		)
		if err != nil {
			slog.Error("Initializing object storage", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No object storage configured, image uploads are disabled")
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(cfg, uploads),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Running", "addr", cfg.Addr, "publicURL", cfg.PublicURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-signals
	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forcing shutdown", "error", err)
	}

	database.CloseDB()
}

func configLogger(debug bool) {
	var handler slog.Handler
	if debug {
		handler = devslog.NewHandler(os.Stdout, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{Level: slog.LevelDebug},
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}
