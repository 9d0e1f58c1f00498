package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "video_pipeline_service/cmd/api_gateway/docs" // 引入生成的 Swagger 文档
	accountapp "video_pipeline_service/internal/account/app"
	accountrepo "video_pipeline_service/internal/account/repository"
	"video_pipeline_service/internal/api/handlers"
	"video_pipeline_service/internal/api/router"
	"video_pipeline_service/internal/video/app"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/queue"
	"video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.APIGateway, config.EnvConfig.APIGatewayLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.APIGateway](config.EnvConfig.APIGateway, config.EnvConfig.APIGatewayYAMLPath)
	token.Configure(cfg.JWTSecret, cfg.TokenTTL)

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

	pool, err := database.OpenPool(cfg.PostgreSQL)
	if err != nil {
		logger.Log.Fatal("connect postgres pool failed", zap.Error(err))
	}
	defer pool.Close()

	store, err := database.OpenMinIO(cfg.MinIO)
	if err != nil {
		logger.Log.Fatal("connect minio failed", zap.String("host", cfg.MinIO.Host), zap.Error(err))
	}

	rdb, err := database.OpenRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("connect redis failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer rdb.Close()

	videoRepo := repository.NewVideoRepo(db)
	jobs := queue.New(rdb, queue.OptionsFromConfig(cfg.Queue))
	videoHandler := handlers.NewVideoHandler(
		app.NewVideoUseCase(videoRepo, store, jobs, cfg.UploadTTL),
		app.NewPlaybackResolver(videoRepo, store, cfg.PlaybackTTL),
	)
	accountHandler := handlers.NewAccountHandler(accountapp.NewAccountUseCase(accountrepo.NewAccountRepository(pool)))

	// 创建 Fiber 应用
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.APIGatewayLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r, accountHandler, videoHandler)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down api gateway")
		if err := r.Shutdown(); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	port := cfg.Port
	if port == "" {
		port = config.EnvConfig.APIGatewayPort
	}
	if err := r.Listen(":" + port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}
