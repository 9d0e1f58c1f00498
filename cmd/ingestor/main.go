package main

import (
	"context"
	"errors"
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
	"video_pipeline_service/pkg/notification"
	"video_pipeline_service/pkg/queue"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.Ingestor, config.EnvConfig.IngestorLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Ingestor](config.EnvConfig.Ingestor, config.EnvConfig.IngestorYAMLPath)

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

	rdb, err := database.OpenRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("connect redis failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer rdb.Close()

	source, err := openSource(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("open notification source failed", zap.String("transport", cfg.Transport), zap.Error(err))
	}
	defer source.Close()

	repo := repository.NewVideoRepo(db)
	jobs := queue.New(rdb, queue.OptionsFromConfig(cfg.Queue))
	ingestor := app.NewIngestor(source, app.NewAdmission(repo, jobs), repo, app.IngestorOptions{
		BatchSize:         cfg.BatchSize,
		WaitTime:          cfg.WaitTime,
		ReconcileInterval: cfg.ReconcileInterval,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingestor.Run(gctx) })
	g.Go(func() error { return ingestor.RunReconciler(gctx) })
	if cfg.MetricsPort != "" {
		g.Go(func() error { return metrics.Serve(gctx, ":"+cfg.MetricsPort) })
	}
	if cfg.HealthPort != "" {
		hs := health.New(config.EnvConfig.Ingestor, map[string]health.Check{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, 0)
		g.Go(func() error { return hs.Serve(gctx, ":"+cfg.HealthPort) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Fatal("ingestor stopped", zap.Error(err))
	}
	logger.Log.Info("ingestor stopped")
}

func openSource(ctx context.Context, cfg config.Ingestor) (notification.Source, error) {
	switch cfg.Transport {
	case "sqs":
		client, err := database.NewSQSClient(ctx, database.SQSConnection{
			Region:   cfg.SQS.Region,
			Endpoint: cfg.SQS.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return notification.NewSQSSource(client, cfg.SQS.QueueURL), nil
	default:
		mq := cfg.RabbitMQ
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    database.RabbitMQURL(mq.User, mq.Password, mq.IP, mq.Port),
			RetryCount:    mq.RetryCount,
			RetryInterval: time.Duration(mq.RetryInterval),
		})
		if err != nil {
			return nil, err
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, mq.RetryCount, time.Duration(mq.RetryInterval))
		if err != nil {
			return nil, err
		}
		if _, err := database.DeclareNotificationQueue(ch, mq.Queue, mq.DeadLetter, mq.DeliveryLimit); err != nil {
			return nil, err
		}
		return notification.NewAMQPSource(ch, mq.Queue, cfg.BatchSize), nil
	}
}
