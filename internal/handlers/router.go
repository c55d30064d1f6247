package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nkiryanov/chatrooms/internal/handlers/middleware"
	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/metrics"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/service/message"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Deps struct {
	Auth     authService
	Users    userService
	Rooms    roomService
	Messages messageService
	Hub      hub

	// Websocket upgrader. Origin policy lives here
	Upgrader *websocket.Upgrader

	// Limits anonymous endpoints (login, refresh, registration). Nil means no limit
	RateLimiter *middleware.RateLimiter

	Logger logger.Logger
}

func NewRouter(d Deps) http.Handler {
	l := d.Logger

	withAuth := middleware.AuthMiddleware(d.Auth)
	limited := func(h http.Handler) http.Handler {
		if d.RateLimiter == nil {
			return h
		}
		return d.RateLimiter.Middleware(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/login", limited(handleLogin(d.Auth, l)))
	mux.Handle("POST /api/auth/refresh-token", limited(handleTokenRefresh(d.Auth, l)))
	mux.Handle("POST /api/auth/logout", handleLogout(d.Auth))

	mux.Handle("POST /api/users", limited(handleCreateUser(d.Users, l)))
	mux.Handle("GET /api/users", withAuth(handleListUsers(d.Users, l)))
	mux.Handle("GET /api/users/{username}", withAuth(handleGetUser(d.Users, l)))
	mux.Handle("PATCH /api/users/{username}", withAuth(handleUpdateUser(d.Users, l)))
	mux.Handle("DELETE /api/users/{username}", withAuth(handleDeleteUser(d.Users, l)))
	mux.Handle("GET /api/users/{username}/chatrooms", withAuth(handleListUserRooms(d.Users, l)))

	mux.Handle("GET /api/chatrooms", withAuth(handleListRooms(d.Rooms, l)))
	mux.Handle("POST /api/chatrooms", withAuth(handleCreateRoom(d.Rooms, l)))
	mux.Handle("POST /api/chatrooms/search", withAuth(handleSearchRooms(d.Rooms, l)))
	mux.Handle("GET /api/chatrooms/{id}", withAuth(handleGetRoom(d.Rooms, l)))
	mux.Handle("PATCH /api/chatrooms/{id}", withAuth(handleUpdateRoom(d.Rooms, l)))
	mux.Handle("DELETE /api/chatrooms/{id}", withAuth(handleDeleteRoom(d.Rooms, l)))
	mux.Handle("POST /api/chatrooms/{id}/login", withAuth(handleRoomLogin(d.Rooms, l)))
	mux.Handle("POST /api/chatrooms/{id}/logout", withAuth(handleRoomLogout(d.Rooms, l)))
	mux.Handle("GET /api/chatrooms/{id}/messages", withAuth(handleListMessages(d.Messages, l)))
	mux.Handle("POST /api/chatrooms/{id}/messages", withAuth(handleCreateMessage(d.Messages, l)))

	mux.Handle("GET /api/messages/{id}", withAuth(handleGetMessage(d.Messages, l)))
	mux.Handle("PATCH /api/messages/{id}", withAuth(handleUpdateMessage(d.Messages, l)))
	mux.Handle("DELETE /api/messages/{id}", withAuth(handleDeleteMessage(d.Messages, l)))

	// Browsers can't set headers on websocket handshake, so token may come in query
	mux.Handle("GET /api/ws", handleWebsocket(d.Auth, d.Hub, d.Upgrader, l))

	mux.Handle("GET /metrics", metrics.Handler())

	handler := chain(mux,
		middleware.LoggerMiddleware(l),
		metrics.Middleware,
	)

	return handler
}

type authService interface {
	// Login user with username and password
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found or used: has to return apperrors.ErrRefreshTokenNotFound or apperrors.ErrRefreshTokenIsUsed
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Verify access token
	ParseAccess(ctx context.Context, access string) (models.User, error)

	SetRefreshCookie(w http.ResponseWriter, pair models.TokenPair)
	ClearRefreshCookie(w http.ResponseWriter)

	GetAccessString(r *http.Request) (string, error)
	GetRefreshString(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

type userService interface {
	Create(ctx context.Context, username string, password string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, username string) (models.User, error)
	ChangePassword(ctx context.Context, actor models.User, username string, password string) (models.User, error)
	Delete(ctx context.Context, actor models.User, username string) error
	ListRooms(ctx context.Context, actor models.User, username string) ([]models.Room, error)
}

type roomService interface {
	Create(ctx context.Context, admin models.User, name string, password string) (models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	Get(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	Search(ctx context.Context, nameFilter string, after string, limit int) ([]models.Room, error)
	ChangePassword(ctx context.Context, actor models.User, roomID uuid.UUID, password string) (models.Room, error)
	Delete(ctx context.Context, actor models.User, roomID uuid.UUID) error
	Login(ctx context.Context, user models.User, roomID uuid.UUID, connID string, password string) (models.RoomLogin, error)
	Logout(ctx context.Context, user models.User, roomID uuid.UUID) error
}

type messageService interface {
	List(ctx context.Context, user models.User, roomID uuid.UUID, opts message.ListOpts) ([]models.Message, error)
	Create(ctx context.Context, user models.User, roomID uuid.UUID, body string) (models.Message, error)
	Get(ctx context.Context, user models.User, messageID uuid.UUID) (models.Message, error)
	Edit(ctx context.Context, user models.User, messageID uuid.UUID, body string) (models.Message, error)
	Delete(ctx context.Context, user models.User, messageID uuid.UUID) error
}

type hub interface {
	// Pump frames of upgraded connection until it closes
	Serve(conn *websocket.Conn, user models.User)
}
