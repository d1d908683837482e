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

	"github.com/crucial707/licitasis/internal/config"
	"github.com/crucial707/licitasis/internal/db"
	"github.com/crucial707/licitasis/internal/scheduler"
)

func main() {

	// Load configuration
	cfg := config.Load()
	setupLogger(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Schema first: request paths assume audit_log exists
	if err := db.Migrate(cfg.DB().URL()); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DB())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("connected to the database", "host", cfg.DBHost, "name", cfg.DBName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := newRecorder(database, cfg)

	if cfg.AuditCleanupCron != "" {
		job := &scheduler.RetentionJob{Cleaner: rec, Spec: cfg.AuditCleanupCron, RetentionDays: cfg.AuditRetentionDays}
		c, err := job.Start(ctx)
		if err != nil {
			slog.Error("failed to schedule audit cleanup", "error", err)
			os.Exit(1)
		}
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouterWithRecorder(database, cfg, rec),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	// Start server LAST
	slog.Info("starting server", "port", cfg.Port, "tls", cfg.TLSCertFile != "")
	if cfg.TLSCertFile != "" {
		err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogger(format string) {
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		h = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(h))
}
