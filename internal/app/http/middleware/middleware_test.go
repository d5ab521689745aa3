package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsmarket/internal/api/reqctx"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func init() { gin.SetMode(gin.TestMode) }

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func authRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		a := reqctx.Actor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": a.UserID.String(), "role": a.Role, "email": a.Email})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	id := uuid.New()
	tok := sign(t, jwt.MapClaims{
		"sub":          id.String(),
		"email":        "owner@shop.test",
		"role":         "authenticated",
		"app_metadata": map[string]interface{}{"role": "shop_owner"},
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	w := get(authRouter(AuthMiddleware(NewHS256Authenticator(testSecret))), "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"role":"shop_owner"`)
	assert.Contains(t, w.Body.String(), "owner@shop.test")
}

func TestAuthMiddlewareFallsBackToTopLevelRole(t *testing.T) {
	tok := sign(t, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	w := get(authRouter(AuthMiddleware(NewHS256Authenticator(testSecret))), "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	r := authRouter(AuthMiddleware(NewHS256Authenticator(testSecret)))

	expired := sign(t, jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Minute).Unix()})
	noExp := sign(t, jwt.MapClaims{"sub": uuid.NewString()})
	badSub := sign(t, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()})
	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(), "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	system := sign(t, jwt.MapClaims{"sub": uuid.NewString(), "role": "system", "exp": time.Now().Add(time.Hour).Unix()})
	systemMeta := sign(t, jwt.MapClaims{
		"sub":          uuid.NewString(),
		"role":         "authenticated",
		"app_metadata": map[string]interface{}{"role": "system"},
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	cases := map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"expired":   "Bearer " + expired,
		"no exp":    "Bearer " + noExp,
		"bad sub":   "Bearer " + badSub,
		"wrong key": "Bearer " + otherKey,
		"garbage":   "Bearer not.a.jwt",
		"system":    "Bearer " + system,
		"sys meta":  "Bearer " + systemMeta,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(r, header).Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	mk := func(role string) string {
		return "Bearer " + sign(t, jwt.MapClaims{
			"sub":  uuid.NewString(),
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
	}
	r := authRouter(AuthMiddleware(NewHS256Authenticator(testSecret)), RequireRole("admin"))

	assert.Equal(t, http.StatusOK, get(r, mk("admin")).Code)
	assert.Equal(t, http.StatusForbidden, get(r, mk("customer")).Code)
}

func TestSanitizeNestedStrings(t *testing.T) {
	r := gin.New()
	r.Use(SanitizeAndCleanInputMiddleware())
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]interface{}
		require.NoError(t, c.ShouldBindJSON(&body))
		c.PureJSON(http.StatusOK, body)
	})

	payload := `{"email":"<b>a@b.co</b>","amount_cents":150075,"meta":{"note":"<script>x</script>Brake & Clutch"},"tags":["<i>t</i>"]}`
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"email":"a@b.co"`)
	assert.Contains(t, body, `"amount_cents":150075`)
	assert.Contains(t, body, `Brake & Clutch"`)
	assert.Contains(t, body, `"tags":["t"]`)
	assert.NotContains(t, body, "<")
}

func TestSanitizeRejectsMalformedJSON(t *testing.T) {
	r := gin.New()
	r.Use(SanitizeAndCleanInputMiddleware())
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
