package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inpyohongb/kurlyro/internal/app"
	"github.com/inpyohongb/kurlyro/internal/config"
)

func main() {
	// Flags
	once := flag.Bool("once", false, "Run a single cycle and exit")
	interval := flag.Duration("interval", 5*time.Minute, "Cycle interval when not running once")
	addr := flag.String("addr", ":8080", "Address for the health/trigger HTTP server")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	// Logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// App
	application, err := app.New(logger, cfg, *interval)
	if err != nil {
		logger.Error("failed to initialize app", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		application.RunOnce(ctx)
		logger.Info("cycle completed")
		return
	}

	// Health/trigger server runs beside the scheduling loop.
	srv := application.HTTPServer(*addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("shut down")
}
