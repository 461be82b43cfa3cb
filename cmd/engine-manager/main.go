// cmd/engine-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"outreach-engine/internal/common/config"
	"outreach-engine/internal/common/database"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/engine/dedup"
	"outreach-engine/internal/engine/queuebuilder"
	"outreach-engine/internal/engine/quota"
	"outreach-engine/internal/engine/scanner"
	"outreach-engine/internal/engine/sequence"
	"outreach-engine/internal/provider"
	"outreach-engine/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Wire the engine ---
	st := store.New(pg.DB, log)

	messenger := provider.NewClient(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: config.GetDuration(cfg.Provider.Timeout),
	}, log)

	tracker := quota.NewTracker(st, log)
	resolver := dedup.NewResolver(rdb.Client, st, log)
	builder := queuebuilder.New(st, log, cfg.Engine.BatchSize)

	orchestrator := sequence.NewOrchestrator(st, tracker, resolver, messenger, rdb.Client, log, sequence.Config{
		BatchSize:             cfg.Engine.BatchSize,
		SendLeaseTTL:          config.GetDuration(cfg.Engine.SendLeaseTTL),
		RetryBackoff:          config.GetDuration(cfg.Engine.RetryBackoff),
		FailedCooldown:        config.GetDuration(cfg.Engine.FailedCooldown),
		MaxActiveSequences:    cfg.Engine.MaxActiveSequences,
		AcceptanceTimeout:     config.GetDuration(cfg.Engine.AcceptanceTimeout),
		WithdrawnCooldownDays: cfg.Engine.WithdrawnCooldownDays,
	})

	runner := scanner.NewRunner(st, builder, orchestrator, log, scanner.Config{
		ScannerCron:      cfg.Engine.ScannerCron,
		QueueBuilderCron: cfg.Engine.QueueBuilderCron,
		SweepInterval:    config.GetDuration(cfg.Engine.SweepInterval),
	})

	if err := runner.Start(ctx); err != nil {
		zapLog.Fatal("scanner start failed", zap.Error(err))
	}
	zapLog.Info("Engine loops started")

	// --- Health/Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping engine...")
	cancel()
	runner.Stop()
	zapLog.Info("Shutdown complete")
}
