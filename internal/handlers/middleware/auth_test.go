package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/chatrooms/internal/handlers/userctx"
	"github.com/nkiryanov/chatrooms/internal/models"
)

type authFunc func(ctx context.Context, r *http.Request) (models.User, error)

func (f authFunc) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	return f(ctx, r)
}

// Accepts only 'Bearer good' as a user
func bearerAuth(user models.User) authFunc {
	return func(_ context.Context, r *http.Request) (models.User, error) {
		if r.Header.Get("Authorization") != "Bearer good" {
			return models.User{}, errors.New("token is not valid")
		}
		return user, nil
	}
}

func TestAuthMiddleware(t *testing.T) {
	user := models.User{ID: uuid.New(), Username: "nkiryanov"}

	var reached bool
	var got models.User
	h := AuthMiddleware(bearerAuth(user))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		got, _ = userctx.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(header string) *httptest.ResponseRecorder {
		reached, got = false, models.User{}
		r := httptest.NewRequest(http.MethodGet, "/api/chatrooms", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	t.Run("user put to context", func(t *testing.T) {
		w := serve("Bearer good")

		require.Equal(t, http.StatusNoContent, w.Code)
		require.True(t, reached)
		require.Equal(t, user, got)
	})

	for _, header := range []string{"", "Bearer bad", "good"} {
		t.Run("rejected "+header, func(t *testing.T) {
			w := serve(header)

			require.False(t, reached, "handler must not be called")
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.JSONEq(t, `{"error": "service_error", "message": "Unauthorized"}`, w.Body.String())
		})
	}
}
