package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lpgen/internal/artifact"
	"lpgen/internal/config"
	server "lpgen/internal/http"
	"lpgen/internal/jobs"
	"lpgen/internal/llm"
	"lpgen/internal/migrate"
	"lpgen/internal/packager"
	"lpgen/internal/pipeline"
	"lpgen/internal/services"
	"lpgen/internal/stages"
	"lpgen/internal/store"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))

	artifacts := artifact.New(cfg.Storage.JobsDir)
	pkg := packager.New(cfg.Storage.DownloadsDir)

	client, provider, model, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		log.Fatalf("llm client setup failed: %v", err)
	}
	logger.Info("llm_provider", "provider", provider, "model", model)

	reg := jobs.NewRegistry(services.SnapshotObserver(artifacts, func(jobID string, err error) {
		logger.Warn("snapshot_write_failed", "job_id", jobID, "error", err)
	}))

	// Optional durable mirror of job snapshots
	var st *store.Store
	var mirror server.Pinger
	if cfg.Database.DSN != "" {
		// Run migrations on a short-lived connection
		if err := migrate.Run(cfg.Database.Driver, cfg.Database.DSN); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		st, err = store.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db failed: %v", err)
		}
		defer st.Close()
		reg.Observe(st.Observer(5*time.Second, func(jobID string, err error) {
			logger.Warn("job_mirror_failed", "job_id", jobID, "error", err)
		}))
		mirror = st
	}

	exec := pipeline.NewExecutor(cfg, reg, artifacts, stages.Default(cfg, client), pkg, logger)

	evict := func(ctx context.Context, job jobs.Job) {
		if err := artifacts.Remove(job.ID); err != nil {
			logger.Warn("retention_remove_artifacts_failed", "job_id", job.ID, "error", err)
		}
		if err := pkg.Remove(job.ID); err != nil {
			logger.Warn("retention_remove_bundle_failed", "job_id", job.ID, "error", err)
		}
		if st != nil {
			if err := st.DeleteJob(ctx, job.ID); err != nil {
				logger.Warn("retention_remove_mirror_failed", "job_id", job.ID, "error", err)
			}
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := jobs.NewRunner(cfg, reg, exec, evict, logger)
	go runner.Start(rootCtx)

	svc := services.NewJobService(reg, artifacts, pkg, runner, logger)
	s := server.NewServer(cfg, svc, mirror, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		errCh <- s.Listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_failed", "error", err)
	}
	runner.Shutdown(shutdownCtx)
}
