package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(secret))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := UserID(c.Request.Context())
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id)
	})
	return r
}

func do(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestParseToken(t *testing.T) {
	raw := signed(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	sub, err := ParseToken(raw, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	_, err = ParseToken(raw, "other")
	require.Error(t, err)

	expired := signed(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err = ParseToken(expired, "s3cret")
	require.Error(t, err)

	noSub := signed(t, "s3cret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	_, err = ParseToken(noSub, "s3cret")
	require.Error(t, err)
}

func TestMiddleware_Header(t *testing.T) {
	r := newRouter("")

	assert.Equal(t, "user-7", do(r, UserHeader, "user-7").Body.String())
	assert.Equal(t, "anonymous", do(r, "", "").Body.String())
}

func TestMiddleware_Bearer(t *testing.T) {
	r := newRouter("s3cret")
	raw := signed(t, "s3cret", jwt.MapClaims{"sub": "user-9"})

	w := do(r, "Authorization", "Bearer "+raw)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-9", w.Body.String())

	w = do(r, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the header is ignored once tokens are required
	assert.Equal(t, "anonymous", do(r, UserHeader, "user-7").Body.String())
}
