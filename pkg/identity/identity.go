package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"meeting-recorder/dto"
	"meeting-recorder/pkg/apperr"
)

const UserHeader = "X-User-Id"

type userKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserID(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(userKey{}).(string)
	return id, id != ""
}

// ParseToken validates an HS256 bearer token and returns its subject.
func ParseToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// Middleware resolves the caller identity. With a secret, only a valid
// bearer token is accepted; without one the X-User-Id header is trusted.
// Requests without an identity pass through unauthenticated.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var userID string
		if secret != "" {
			raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
			if ok {
				sub, err := ParseToken(strings.TrimSpace(raw), secret)
				if err != nil {
					zerolog.Ctx(ctx).Warn().Err(err).Msg("rejected bearer token")
					c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: apperr.Message(apperr.ErrUnauthenticated)})
					return
				}
				userID = sub
			}
		} else {
			userID = strings.TrimSpace(c.GetHeader(UserHeader))
		}

		if userID != "" {
			c.Request = c.Request.WithContext(WithUserID(ctx, userID))
		}
		c.Next()
	}
}
