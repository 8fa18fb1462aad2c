package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireResponder ensures the caller is a responder or a configured admin.
func RequireResponder() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.Responder() {
			return fiber.NewError(http.StatusForbidden, "responder role required")
		}
		return c.Next()
	}
}
