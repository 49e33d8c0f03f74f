package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comedor/internal/config"
	"comedor/internal/domain/model"
	"comedor/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authedRequest(token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func runAuth(c echo.Context) error {
	cfg := config.Config{JWTSecret: testSecret}
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	return middleware.AuthJWT(cfg)(next)(c)
}

func TestAuthJWT_ValidToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "11111111-1111-1111-1111-111111111111",
		"email": "worker@school.test",
		"role":  "WORKER",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	c, rec := authedRequest(token)

	require.NoError(t, runAuth(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	p, ok := middleware.PrincipalFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", p.ID)
	assert.Equal(t, model.RoleWorker, p.Role)
}

func TestAuthJWT_MissingHeader(t *testing.T) {
	c, rec := authedRequest("")

	require.NoError(t, runAuth(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_WrongSecret(t *testing.T) {
	token := signToken(t, "other_secret", jwt.MapClaims{
		"sub":  "u-1",
		"role": "WORKER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	c, rec := authedRequest(token)

	require.NoError(t, runAuth(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "u-1",
		"role": "WORKER",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	c, rec := authedRequest(token)

	require.NoError(t, runAuth(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_MissingRoleClaim(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	c, rec := authedRequest(token)

	require.NoError(t, runAuth(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	cases := []struct {
		name string
		role string
		min  model.Role
		want int
	}{
		{"worker passes worker gate", "WORKER", model.RoleWorker, http.StatusOK},
		{"worker blocked at supervisor gate", "WORKER", model.RoleSupervisor, http.StatusForbidden},
		{"super admin passes everywhere", "SUPER_ADMIN", model.RoleSupervisor, http.StatusOK},
		{"unknown role blocked", "JANITOR", model.RoleRequester, http.StatusForbidden},
		{"missing role unauthorized", "", model.RoleRequester, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := authedRequest("")
			if tc.role != "" {
				c.Set(middleware.CtxUserRoleKey, tc.role)
			}

			require.NoError(t, middleware.RequireRole(tc.min)(next)(c))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
