package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"video_pipeline_service/internal/inspector"
	"video_pipeline_service/internal/video/app"
	"video_pipeline_service/internal/video/repository"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"
	"video_pipeline_service/pkg/logger"
	"video_pipeline_service/pkg/queue"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func main() {
	limit := flag.Int64("limit", 200, "max dead letters to list")
	flag.Parse()

	// TUI 佔用 stdout, log 只寫檔案
	logger.Log = logger.InitializeFileOnly(config.EnvConfig.Inspector, config.EnvConfig.InspectorLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Inspector](config.EnvConfig.Inspector, config.EnvConfig.InspectorYAMLPath)

	ctx := context.Background()
	db, err := database.OpenGorm(cfg.PostgreSQL)
	if err != nil {
		exit("connect postgres", err)
	}
	rdb, err := database.OpenRedis(cfg.Redis)
	if err != nil {
		exit("connect redis", err)
	}
	defer rdb.Close()

	deadLetters, closeSink, err := repository.OpenDeadLetterRepo(ctx, cfg.DeadLetter)
	if err != nil {
		exit("open dead letter sink", err)
	}
	defer closeSink(ctx)

	jobs := queue.New(rdb, queue.OptionsFromConfig(cfg.Queue))
	// retry only, no object store needed
	videos := app.NewVideoUseCase(repository.NewVideoRepo(db), nil, jobs, 0)

	model := inspector.New(inspector.NewLoader(deadLetters, jobs, *limit), videos)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		exit("inspector", err)
	}
}

func exit(step string, err error) {
	logger.Log.Error(step+" failed", zap.Error(err))
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
