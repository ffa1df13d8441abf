package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-bazaar/internal/app"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/config"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/lock"
	"github.com/noah-isme/backend-bazaar/internal/notify"
	"github.com/noah-isme/backend-bazaar/internal/obs"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

const outboxLockKey = "worker:outbox"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "bazaar"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.NewDBPool(ctx, cfg, "bazaar-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for asynq")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	st := store.New(pool)
	dispatcher := &events.Dispatcher{
		Store: st,
		Notifiers: []events.Notifier{
			events.LogNotifier{Logger: logger},
			notify.TaskNotifier{Client: taskClient},
		},
		BatchSize: 50,
		Logger:    logger,
	}

	locker := lock.Locker{R: redisClient, RetryBackoff: 100 * time.Millisecond}
	pollInterval := envDuration("WORKER_OUTBOX_POLL_INTERVAL", 2*time.Second)
	lockTTL := envDuration("WORKER_OUTBOX_LOCK_TTL", 30*time.Second)

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := locker.WithLock(ctx, outboxLockKey, lockTTL, func(lockCtx context.Context) error {
				for {
					n, err := dispatcher.WorkOnce(lockCtx)
					if err != nil || n == 0 {
						return err
					}
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("drain outbox")
			}
		}
	}()

	worker := notify.EmailWorker{
		Mail:   common.NopEmailSender{},
		Users:  st,
		Logger: &logger,
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: envInt("WORKER_TASK_CONCURRENCY", 4),
		Queues:      map[string]int{notify.QueueNotify: 1},
	})

	logger.Info().Msg("worker starting")
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
	if err := srv.Run(worker.Mux()); err != nil {
		logger.Error().Err(err).Msg("task server stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
