package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/repository"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	PlatformID int64
	// User is nil for a configured admin who has not contacted the bot yet.
	User  *domain.User
	Admin bool
}

// Responder reports whether the caller may operate the admin API.
func (p *Principal) Responder() bool {
	return p.Admin || (p.User != nil && p.User.Role == domain.UserRoleResponder)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens  *TokenManager
	users   repository.UserRepository
	isAdmin func(platformID int64) bool
}

// NewAuthMiddleware constructs middleware. isAdmin may be nil.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, isAdmin func(int64) bool) *AuthMiddleware {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &AuthMiddleware{tokens: tokens, users: users, isAdmin: isAdmin}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{PlatformID: claims.PlatformID, Admin: m.isAdmin(claims.PlatformID)}
	user, err := m.users.GetByPlatformID(c.UserContext(), claims.PlatformID)
	switch {
	case err == nil:
		principal.User = user
	case apperrors.IsNotFound(err):
		if !principal.Admin {
			return apperrors.NewUnauthorized("user not found")
		}
	default:
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
