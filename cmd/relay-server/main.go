package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"latksync/internal/archive"
	"latksync/internal/config"
	"latksync/internal/relay"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := archive.Open(ctx, cfg.ArchiveOptions(logger))
	cancel()
	if err != nil {
		logger.Error("archive_open_failed", "mode", cfg.ArchiveMode, "error", err)
		os.Exit(1)
	}

	opts := cfg.RelayOptions(logger)
	server := relay.NewServer(store, opts)
	logger.Info("starting_relay_server",
		"addr", opts.Addr,
		"archive_mode", cfg.ArchiveMode,
		"auth_enabled", opts.JWTSecret != "",
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		exitCode = 1
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
		exitCode = 1
	}
	stop()
	// flushes queued hybrid writes
	if err := store.Close(); err != nil {
		logger.Error("archive_close_failed", "error", err)
		exitCode = 1
	}
	logger.Info("server_stopped_gracefully")
	os.Exit(exitCode)
}
