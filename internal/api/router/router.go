package router

import (
	"video_pipeline_service/internal/api/handlers"
	"video_pipeline_service/pkg/middlewares"
	"video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册 api gateway 路由
// @title Video Pipeline Service API
// @version 1.0
// @description Upload, transcode status and playback of videos
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(app *fiber.App, accountHandler *handlers.AccountHandler, videoHandler *handlers.VideoHandler) {
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)

	authRoutes := app.Group("/auth")
	authRoutes.Post("/signup", accountHandler.Signup)
	authRoutes.Post("/login", accountHandler.Login)

	videoRoutes := app.Group("/videos")
	videoRoutes.Get("/", videoHandler.List)
	videoRoutes.Get("/:id", videoHandler.Get)
	videoRoutes.Get("/:id/play", videoHandler.Play)
	videoRoutes.Get("/:id/thumbnail", videoHandler.Thumbnail)
	videoRoutes.Post("/:id/retry", middlewares.JWTMiddleware(token.RoleAdmin), videoHandler.Retry)

	uploadRoutes := app.Group("/upload", middlewares.JWTMiddleware())
	uploadRoutes.Post("/request", videoHandler.RequestUpload)
	uploadRoutes.Post("/complete", videoHandler.CompleteUpload)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/videos/:id", websocket.New(videoHandler.StatusSocket))
}
