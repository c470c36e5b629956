package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayhub/booking-core/internal/utils"
)

const testSecret = "test-secret"

func doRequest(t *testing.T, mw []echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	e.GET("/protected", handler)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	t.Run("ValidToken", func(t *testing.T) {
		tok, err := utils.NewAccessToken(testSecret, 42, "GUEST", 15)
		require.NoError(t, err)

		rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		tok, err := utils.NewAccessToken("another-secret", 42, "GUEST", 15)
		require.NoError(t, err)

		rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	mint := func(t *testing.T, role string) string {
		tok, err := utils.NewAccessToken(testSecret, 42, role, 15)
		require.NoError(t, err)
		return "Bearer " + tok.Token
	}

	t.Run("AllowedRole", func(t *testing.T) {
		mw := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("GUEST", "HOST")}
		rec := doRequest(t, mw, mint(t, "GUEST"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("DisallowedRole", func(t *testing.T) {
		mw := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("HOST")}
		rec := doRequest(t, mw, mint(t, "GUEST"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("NoRoleInContext", func(t *testing.T) {
		mw := []echo.MiddlewareFunc{RequireRole("GUEST")}
		rec := doRequest(t, mw, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
