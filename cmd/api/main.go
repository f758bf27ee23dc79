package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"syllabusai/internal/analysis"
	"syllabusai/internal/api"
	"syllabusai/internal/auth"
	"syllabusai/internal/config"
	"syllabusai/internal/database"
	"syllabusai/internal/genai"
	"syllabusai/internal/notify"
	"syllabusai/internal/pdf"
	"syllabusai/internal/scan"
	"syllabusai/internal/storage"
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
	log.Printf("database ready, driver=%s", cfg.Database.Driver)

	stager, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	log.Printf("staging storage ready, driver=%s", cfg.Storage.Driver)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	authService, ephemeral, err := auth.NewAuthServiceFromFiles(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}
	if ephemeral {
		logger.Warn("no jwt key pair configured, using an ephemeral key; sessions end on restart")
	}

	ai := genai.New(cfg.AI)
	if client, ok := ai.(*genai.Client); ok {
		client.WithLogger(logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, uploads cannot be analyzed")
	}

	svc := analysis.NewService(
		db,
		stager,
		scan.New(cfg.Clamd.Addr),
		ai,
		notify.NewRedisPublisher(redisClient),
		asynqClient,
		logger,
		analysis.Options{
			MaxPromptChars: cfg.AI.MaxPromptChars,
			StrictCalendar: cfg.AI.StrictCalendar,
			StagingTTL:     cfg.Staging.TTL,
		},
	)

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Deps{
		DB:             db,
		Auth:           authService,
		Throttle:       auth.NewLoginThrottle(redisClient, cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL),
		Revocations:    auth.NewRevocations(redisClient),
		Redis:          redisClient,
		Analysis:       svc,
		PDF:            pdf.New(cfg.PDF.Enabled),
		CookieDomain:   cfg.API.CookieDomain,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("api listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
}
