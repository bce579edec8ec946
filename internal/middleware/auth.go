package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/apperr"
	"messenger-core/internal/auth"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// TokenVerifier returns the user id carried by a bearer token.
type TokenVerifier interface {
	Parse(raw string) (string, error)
}

// UserLookup resolves users from the directory.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// AuthMiddleware validates the bearer token and checks the user still exists.
func AuthMiddleware(tokens TokenVerifier, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.Authentication("missing authorization"))
			return
		}

		raw := auth.BearerToken(header)
		if raw == "" {
			abort(c, apperr.Authentication("invalid authorization header"))
			return
		}

		userID, err := tokens.Parse(raw)
		if err != nil {
			abort(c, apperr.Authentication("invalid token"))
			return
		}

		if _, err := users.GetUser(c.Request.Context(), userID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				abort(c, apperr.Authentication("user not found"))
				return
			}
			abort(c, apperr.Internal("internal error", err))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), apperr.Body(err))
}
