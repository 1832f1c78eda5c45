package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const SubjectKey = "subject"

// RequireAuth validates the bearer token when an API secret is configured
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.auth == nil || !m.auth.Enabled() {
			return c.Next()
		}

		log := m.log.TraceFromContext(c.UserContext()).Function("RequireAuth")

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Info("missing authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
			log.Info("invalid authorization header format")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		subject, err := m.auth.ValidateToken(c.UserContext(), tokenParts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(SubjectKey, subject)
		return c.Next()
	}
}

func GetSubject(c *fiber.Ctx) string {
	subject, _ := c.Locals(SubjectKey).(string)
	return subject
}
