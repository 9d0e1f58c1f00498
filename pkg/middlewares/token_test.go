package middlewares

import (
	"net/http/httptest"
	"testing"
	"time"

	t_token "video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMiddleware(t *testing.T) {
	t_token.Configure("middleware-secret", time.Hour)
	admin, err := t_token.GenerateJWT("acc-admin", string(t_token.RoleAdmin), "test")
	require.NoError(t, err)
	creator, err := t_token.GenerateJWT("acc-creator", string(t_token.RoleCreator), "test")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/any", JWTMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(TokenAccountID).(string))
	})
	app.Get("/admin", JWTMiddleware(t_token.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing token", "/any", "", fiber.StatusUnauthorized},
		{"garbage token", "/any", "Bearer nope", fiber.StatusUnauthorized},
		{"creator allowed", "/any", "Bearer " + creator, fiber.StatusOK},
		{"query token", "/any?auth=" + creator, "", fiber.StatusOK},
		{"creator forbidden on admin route", "/admin", "Bearer " + creator, fiber.StatusForbidden},
		{"admin allowed", "/admin", "Bearer " + admin, fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
