package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/repository/repositorytest"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expires, err := tm.GenerateToken(601)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expires, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(601), claims.PlatformID)
	assert.Equal(t, "601", claims.Subject)
}

func TestTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	token, _, err := NewTokenManager("other", 5).GenerateToken(601)
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		PlatformID: 601,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "601",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 5).ParseToken(signed)
	assert.Error(t, err)
}

func newTestApp(t *testing.T, admins ...int64) (*fiber.App, *TokenManager) {
	t.Helper()
	store := repositorytest.New()
	ctx := context.Background()
	responderPID, requesterPID := int64(601), int64(501)
	require.NoError(t, store.Users().Create(ctx, &domain.User{PlatformID: &responderPID, Role: domain.UserRoleResponder}))
	require.NoError(t, store.Users().Create(ctx, &domain.User{PlatformID: &requesterPID, Role: domain.UserRoleRequester}))

	tokens := NewTokenManager("secret", 5)
	adminSet := map[int64]bool{}
	for _, id := range admins {
		adminSet[id] = true
	}
	mw := NewAuthMiddleware(tokens, store.Users(), func(id int64) bool { return adminSet[id] })

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		if de := apperrors.ToDomainError(err); de.Code != apperrors.CodeInternal {
			return c.SendStatus(de.HTTPStatus)
		}
		if fe, ok := err.(*fiber.Error); ok {
			return c.SendStatus(fe.Code)
		}
		return c.SendStatus(http.StatusInternalServerError)
	}})
	app.Get("/admin", mw.Handle, RequireResponder(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens
}

func call(t *testing.T, app *fiber.App, header string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddlewareRoles(t *testing.T) {
	app, tokens := newTestApp(t, 900)

	bearer := func(pid int64) string {
		token, _, err := tokens.GenerateToken(pid)
		require.NoError(t, err)
		return "Bearer " + token
	}

	assert.Equal(t, http.StatusUnauthorized, call(t, app, ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "Basic abc"))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "Bearer not-a-token"))
	assert.Equal(t, http.StatusNoContent, call(t, app, bearer(601)))
	assert.Equal(t, http.StatusForbidden, call(t, app, bearer(501)))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, bearer(777)))
	assert.Equal(t, http.StatusNoContent, call(t, app, bearer(900)))
}
