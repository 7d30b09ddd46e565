package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"pixelCV/internal/api"
	"pixelCV/internal/auth"
	"pixelCV/internal/compose"
	"pixelCV/internal/config"
	"pixelCV/internal/database"
	"pixelCV/internal/generate"
	"pixelCV/internal/mrz"
	"pixelCV/internal/pdf"
	"pixelCV/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("api bootstrapped",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("db_sslmode", cfg.Database.SSLMode),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

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

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		log.Fatalf("init token verifier: %v", err)
	}

	var extractor mrz.Extractor
	gemini, err := mrz.NewGemini(context.Background(), cfg.Gemini)
	switch {
	case err == nil:
		extractor = gemini
		defer gemini.Close()
	case errors.Is(err, mrz.ErrDisabled):
		logger.Info("passport scanning disabled, GEMINI_API_KEY not set")
	default:
		log.Fatalf("init passport extractor: %v", err)
	}

	var scanner api.VirusScanner
	if cfg.Clamd.Enabled {
		scanner = api.NewClamdScanner(cfg.Clamd.Address)
		logger.Info("upload scanning enabled", slog.String("clamd", cfg.Clamd.Address))
	}

	renderer := compose.NewRenderer(pdf.NewMeasurer(), cfg.Render.Options(), logger)
	writer := pdf.NewWriter(pdf.Options{Compress: cfg.Render.Compress, Creator: "pixelCV"}, logger)
	service := generate.NewService(renderer, writer,
		generate.WithDelay(cfg.Render.BulkDelay),
		generate.WithLogger(logger),
	)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Dependencies{
		Templates: database.NewTemplateRepository(db),
		Jobs:      database.NewJobRepository(db),
		Profiles:  database.NewProfileRepository(db),
		Store:     storageClient,
		Queue:     queue,
		Renderer:  service,
		Redis:     redisClient,
		Verifier:  verifier,
		Scanner:   scanner,
		Extractor: extractor,
		Settings:  cfg.Editor.Settings(),
		Sessions:  api.NewSessionStore(api.DefaultSessionTTL),
		API:       cfg.API,
		Logger:    logger,
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("addr", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
