package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"pixelCV/internal/compose"
	"pixelCV/internal/config"
	"pixelCV/internal/database"
	"pixelCV/internal/generate"
	"pixelCV/internal/metrics"
	"pixelCV/internal/pdf"
	"pixelCV/internal/preview"
	"pixelCV/internal/storage"
	"pixelCV/internal/tasks"
	"pixelCV/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

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

	if cfg.Worker.MetricsPort > 0 {
		go serveMetrics(logger, cfg.Worker.MetricsPort)
	}

	renderer := compose.NewRenderer(pdf.NewMeasurer(), cfg.Render.Options(), logger)
	writer := pdf.NewWriter(pdf.Options{Compress: cfg.Render.Compress, Creator: "pixelCV"}, logger)
	service := generate.NewService(renderer, writer,
		generate.WithDelay(cfg.Render.BulkDelay),
		generate.WithLogger(logger),
	)

	templates := database.NewTemplateRepository(db)
	notifier := worker.NewRedisNotifier(redisClient)

	bulkHandler := worker.NewBulkGenerateHandler(
		service,
		templates,
		database.NewJobRepository(db),
		database.NewProfileRepository(db),
		storageClient,
		notifier,
		logger,
	)
	previewHandler := worker.NewTemplatePreviewHandler(
		templates,
		preview.NewShooter(logger, cfg.Worker.PreviewTimeout),
		storageClient,
		notifier,
		logger,
	)

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeBulkGenerate, bulkHandler)
	mux.Handle(tasks.TypeTemplatePreview, previewHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}

func serveMetrics(logger *slog.Logger, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("worker metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("worker metrics server stopped", slog.Any("error", err))
	}
}
