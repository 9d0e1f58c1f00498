package handlers

import (
	"video_pipeline_service/internal/account/app"
	"video_pipeline_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AccountHandler 处理帳號相關的 HTTP 请求
type AccountHandler struct {
	Accounts app.AccountUseCase
}

// NewAccountHandler create AccountHandler
func NewAccountHandler(accounts app.AccountUseCase) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

type credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup 注册新帳號
// @Summary Sign up
// @Description Creates a creator account and returns a session token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body credentials true "email and password"
// @Success 201 {object} domain.Session
// @Failure 400 {object} string "invalid request"
// @Failure 409 {object} string "email already registered"
// @Router /auth/signup [post]
func (h *AccountHandler) Signup(c *fiber.Ctx) error {
	var req credentials
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	logger.Log.Debug("signup request", zap.String("email", req.Email))

	session, err := h.Accounts.Signup(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return replyError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Login 帳號登入
// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body credentials true "email and password"
// @Success 200 {object} domain.Session
// @Failure 401 {object} string "invalid credentials"
// @Router /auth/login [post]
func (h *AccountHandler) Login(c *fiber.Ctx) error {
	var req credentials
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	session, err := h.Accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(session)
}
