package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
)

const (
	localUserID = "userId"
	localEmail  = "email"
)

// NewAuthMiddleware accepts a bearer access token signed with secret and
// stores the caller's identity in the request locals.
func NewAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid header format"})
		}

		claims, err := utils.ValidateToken(secret, parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid token"})
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localEmail, claims.Email)
		return c.Next()
	}
}

// Identity reads what NewAuthMiddleware stored. ok is false when the
// route is not behind the middleware.
func Identity(c *fiber.Ctx) (domain.Identity, bool) {
	userID, ok := c.Locals(localUserID).(int64)
	if !ok || userID == 0 {
		return domain.Identity{}, false
	}

	email, _ := c.Locals(localEmail).(string)

	return domain.Identity{UserID: userID, Email: email}, true
}
