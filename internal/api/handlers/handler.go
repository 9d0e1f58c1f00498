package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	accountapp "video_pipeline_service/internal/account/app"
	account "video_pipeline_service/internal/account/domain"
	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/encrypt"
	"video_pipeline_service/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var validate = newValidator()

// newValidator report json field names in validation errors
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ConnectCheck check api connect start
// @Summary Check API Gateway status
// @Description Returns a simple confirmation message
// @Tags Shared
// @Success 200 {string} string "api gateway start!"
// @Router / [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("api gateway start!")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Description Enable or disable debug logging for the gateway
// @Tags Shared
// @Param service query string false "Service name"
// @Param status query bool true "Debug status"
// @Success 200 {string} string "Service debug mode updated"
// @Failure 400 {string} string "Invalid status value"
// @Router /debug [post]
func DebugLogFlag(c *fiber.Ctx) error {
	service := c.Query("service", "api_gateway")
	statusStr := c.Query("status")
	logger.Log.Info("debug", zap.String("service", service), zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("service[%s]: debug mode is : %t", service, status))
}

// errorStatus map a use case error to the HTTP status and the message shown to the client
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNoVariants):
		return fiber.StatusNotFound, "no variants available"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "video not found"
	case errors.Is(err, domain.ErrNotReady):
		return fiber.StatusConflict, "video not ready"
	case errors.Is(err, domain.ErrNotRetryable):
		return fiber.StatusBadRequest, "video is not in failed status"
	case errors.Is(err, account.ErrAccountExists):
		return fiber.StatusConflict, "email already registered"
	case errors.Is(err, account.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, encrypt.ErrWeakPassword):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, accountapp.ErrInvalidEmail):
		return fiber.StatusBadRequest, "invalid email"
	case domain.IsTransient(err):
		return fiber.StatusServiceUnavailable, "service temporarily unavailable"
	}
	return fiber.StatusInternalServerError, "internal server error"
}

func replyError(c *fiber.Ctx, err error) error {
	status, msg := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// parseBody BodyParser then validator tags, a failure is a 400 already written to c
func parseBody(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			tag := verrs[0].Tag()
			if strings.HasPrefix(tag, "required") {
				tag = "required"
			}
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verrs[0].Field() + " is " + tag})
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	return true, nil
}
