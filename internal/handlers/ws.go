package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nkiryanov/chatrooms/internal/handlers/render"
	"github.com/nkiryanov/chatrooms/internal/logger"
)

func handleWebsocket(as authService, h hub, upgrader *websocket.Upgrader, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token, _ = as.GetAccessString(r)
		}

		user, err := as.ParseAccess(r.Context(), token)
		if token == "" || err != nil {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Upgrader writes http error response itself
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.Warn("Websocket upgrade failed", "userID", user.ID, "error", err)
			return
		}

		h.Serve(conn, user)
	})
}
