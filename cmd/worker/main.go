package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"syllabusai/internal/analysis"
	"syllabusai/internal/config"
	"syllabusai/internal/database"
	"syllabusai/internal/metrics"
	"syllabusai/internal/notify"
	"syllabusai/internal/storage"
	"syllabusai/internal/tasks"
	"syllabusai/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Println("database connection ready for worker")

	stager, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	log.Printf("staging storage ready, driver=%s", cfg.Storage.Driver)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	reaper := analysis.NewReaper(db, stager, logger, cfg.Staging.TTL).
		WithNotifier(notify.NewRedisPublisher(redisClient))
	reapHandler := worker.NewReapTaskHandler(reaper, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.HandleFunc(tasks.TypeStagingReap, reapHandler.ProcessTask)
	mux.HandleFunc(tasks.TypeStagingSweep, reapHandler.ProcessSweep)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	sweepSchedule := "@every " + cfg.Worker.SweepInterval.String()
	if _, err := scheduler.Register(sweepSchedule, tasks.NewStagingSweepTask(), asynq.MaxRetry(0)); err != nil {
		log.Fatalf("register sweep: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	if cfg.Worker.MetricsPort > 0 {
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics listener stopped", slog.Any("error", err))
			}
		}()
		defer metricsServer.Close()
	}

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.Duration("staging_ttl", cfg.Staging.TTL),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
