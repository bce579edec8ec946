package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-core/internal/auth"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

type stubUsers struct {
	users map[string]models.User
	err   error
}

func (s stubUsers) GetUser(_ context.Context, id string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return u, nil
}

func setupRouter(users UserLookup) (*gin.Engine, *auth.TokenParser) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenParser("secret")
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r, tokens
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsKnownUser(t *testing.T) {
	r, tokens := setupRouter(stubUsers{users: map[string]models.User{"u1": {ID: "u1"}}})
	tok, err := tokens.Sign("u1", time.Minute)
	require.NoError(t, err)

	rec := call(r, "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["user_id"])
}

func TestAuthMiddlewareRejects(t *testing.T) {
	r, tokens := setupRouter(stubUsers{users: map[string]models.User{}})
	ghost, err := tokens.Sign("ghost", time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"":                 "missing authorization",
		"Basic abc":        "invalid authorization header",
		"Bearer not-a-jwt": "invalid token",
		"Bearer " + ghost:  "user not found",
	}
	for header, want := range cases {
		rec := call(r, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, want, body["error"], header)
		assert.Equal(t, "AUTHENTICATION", body["code"], header)
	}
}

func TestAuthMiddlewareDirectoryFailure(t *testing.T) {
	r, tokens := setupRouter(stubUsers{err: assert.AnError})
	tok, err := tokens.Sign("u1", time.Minute)
	require.NoError(t, err)

	rec := call(r, "Bearer "+tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
