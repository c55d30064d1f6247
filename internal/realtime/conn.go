package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nkiryanov/chatrooms/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// NewUpgrader accepts same-origin requests, requests without Origin (non-browser clients)
// and requests from allowed origins. "*" allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
}

// Serve registers upgraded connection for the user and pumps frames until the connection closes.
// The session is removed from the hub whatever the close reason is.
func (h *Hub) Serve(conn *websocket.Conn, user models.User) {
	s := h.Accept(user)
	l := h.logger.With("connID", s.id, "userID", user.ID)

	go h.writePump(conn, s)

	defer func() {
		h.Remove(s.id)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				l.Info("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			l.Debug("skip malformed frame", "error", err)
			continue
		}

		var roomID uuid.UUID
		if err := json.Unmarshal(in.Data, &roomID); err != nil {
			l.Debug("skip frame without room id", "event", in.Event, "error", err)
			continue
		}

		switch in.Event {
		case EventUserTyping:
			h.Typing(s.id, roomID)
		case EventLeaveChatRoom:
			h.Leave(s.id, roomID)
		default:
			l.Debug("skip unknown event", "event", in.Event, "roomID", roomID)
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped the session
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
