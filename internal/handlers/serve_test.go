package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/realtime"
	"github.com/nkiryanov/chatrooms/internal/repository/postgres"
	"github.com/nkiryanov/chatrooms/internal/service/auth"
	"github.com/nkiryanov/chatrooms/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/chatrooms/internal/service/message"
	"github.com/nkiryanov/chatrooms/internal/service/room"
	"github.com/nkiryanov/chatrooms/internal/service/user"
	"github.com/nkiryanov/chatrooms/internal/testutil"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	return pg.Pool
}

type testServer struct {
	URL string

	Auth     *auth.AuthService
	Users    *user.UserService
	Rooms    *room.RoomService
	Messages *message.MessageService
	Hub      *realtime.Hub
}

// Create db transaction and run server with production services on top of it
// Requests have to be sent one by one: pgx.Tx is not safe for concurrent use
func serveWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(srv testServer)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
		l := logger.NewNoOpLogger()

		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			SecretKey:        "test-secret-key",
			RefreshSecretKey: "test-refresh-secret-key",
		}, storage.Refresh())
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{Hasher: hasher}, tokenManager, storage.User())
		require.NoError(t, err)

		hub := realtime.NewHub(realtime.Config{}, l)
		us := user.NewService(hasher, storage, hub)
		rs := room.NewService(hasher, storage, hub)
		ms := message.NewService(storage, hub)

		router := NewRouter(Deps{
			Auth:     as,
			Users:    us,
			Rooms:    rs,
			Messages: ms,
			Hub:      hub,
			Upgrader: realtime.NewUpgrader(nil),
			Logger:   l,
		})

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(testServer{
			URL:      srv.URL,
			Auth:     as,
			Users:    us,
			Rooms:    rs,
			Messages: ms,
			Hub:      hub,
		})
	})
}

// Create user and return it with fresh access token
func (s testServer) signup(t *testing.T, username string) (models.User, string) {
	t.Helper()

	u, err := s.Users.Create(t.Context(), username, "Passw0rd")
	require.NoError(t, err)

	pair, err := s.Auth.Login(t.Context(), username, "Passw0rd")
	require.NoError(t, err)

	return u, pair.Access.Value
}

// Send request and return response with its body read
func (s testServer) do(t *testing.T, method string, path string, token string, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, s.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal([]byte(body), &value), "body: %s", body)
	return value
}

func roomNames(t *testing.T, body string) []string {
	t.Helper()

	names := []string{}
	for _, room := range decode[[]models.RoomSummary](t, body) {
		names = append(names, room.Name)
	}
	return names
}
