package middlewares

import (
	t_token "video_pipeline_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name, used by the websocket route
	QueryToken = "auth"

	//TokenAccountID get account from token, set c.locals name
	TokenAccountID = "AccountID"
	//TokenRole get role from token, set c.locals name
	TokenRole = "role"
)

// JWTMiddleware validates the bearer token; with roles set, the token role must be one of them
func JWTMiddleware(roles ...t_token.RoleType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			if q := c.Query(QueryToken); q != "" {
				header = "Bearer " + q
			}
		}

		claims, err := t_token.ParseBearer(header)
		if err != nil {
			msg := "invalid token"
			if header == "" {
				msg = "missing token"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}

		if len(roles) > 0 && !hasRole(roles, claims.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}

		c.Locals(TokenAccountID, claims.AccountID)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}

func hasRole(roles []t_token.RoleType, role string) bool {
	for _, r := range roles {
		if string(r) == role {
			return true
		}
	}
	return false
}
