package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video_pipeline_service/internal/video/app"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/health"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/metrics"
	"video_pipeline_service/pkg/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 等待進行中的轉碼結束的上限
const drainTimeout = 10 * time.Minute

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.TranscodeWorker, config.EnvConfig.TranscodeWorkerLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Worker](config.EnvConfig.TranscodeWorker, config.EnvConfig.TranscodeWorkerYAMLPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenGorm(cfg.PostgreSQL)
	if err != nil {
		logger.Log.Fatal("connect postgres failed", zap.String("host", cfg.PostgreSQL.Host), zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Log.Fatal("postgres handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := database.Migrate(ctx, sqlDB); err != nil {
		logger.Log.Fatal("migrate failed", zap.Error(err))
	}

	store, err := database.OpenMinIO(cfg.MinIO)
	if err != nil {
		logger.Log.Fatal("connect minio failed", zap.String("host", cfg.MinIO.Host), zap.Error(err))
	}

	rdb, err := database.OpenRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("connect redis failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer rdb.Close()

	deadLetters, closeSink, err := repository.OpenDeadLetterRepo(ctx, cfg.DeadLetter)
	if err != nil {
		logger.Log.Fatal("open dead letter sink failed", zap.String("driver", cfg.DeadLetter.Driver), zap.Error(err))
	}
	defer closeSink(context.Background())

	t := cfg.Transcode
	worker := app.NewTranscodeWorker(
		repository.NewVideoRepo(db),
		deadLetters,
		store,
		app.NewFFmpeg(t.FFmpegPath, t.FFprobePath, t.EngineTimeout),
		app.WorkerOptions{
			ScratchDir:      cfg.ScratchDir,
			ThumbnailOffset: t.ThumbnailOffset,
			HighResMinimum:  t.HighResMinimum,
		},
	)

	jobs := queue.New(rdb, queue.OptionsFromConfig(cfg.Queue))
	if err := jobs.Start(ctx, worker.Process); err != nil {
		logger.Log.Fatal("start queue failed", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsPort != "" {
		g.Go(func() error { return metrics.Serve(gctx, ":"+cfg.MetricsPort) })
	}
	if cfg.HealthPort != "" {
		hs := health.New(config.EnvConfig.TranscodeWorker, map[string]health.Check{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"minio": func(ctx context.Context) error {
				_, err := store.Client.BucketExists(ctx, store.BucketName)
				return err
			},
		}, 0)
		g.Go(func() error { return hs.Serve(gctx, ":"+cfg.HealthPort) })
	}

	<-gctx.Done()
	logger.Log.Info("shutdown requested, draining in-flight jobs")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("drain timed out, leases will expire and requeue", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		logger.Log.Error("auxiliary server stopped", zap.Error(err))
	}
	logger.Log.Info("transcode worker stopped")
}
