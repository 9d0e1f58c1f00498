package main

import (
	"video_pipeline_service/internal/api/handlers"
	"video_pipeline_service/internal/api/router"

	"github.com/gofiber/fiber/v2"
)

// 服務拆分後各自有 cmd, 此程式只給 swag 掃描路由用
//
//go:generate swag init -g main.go -o cmd/api_gateway/docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, &handlers.AccountHandler{}, &handlers.VideoHandler{})
}
