package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/models"
)

// Session is a live websocket connection registered in the hub.
// All mutable fields are guarded by Hub.mu.
type Session struct {
	id   string
	user models.User // from access token at handshake, never changes

	send chan []byte

	room uuid.UUID // uuid.Nil if not bound to a room

	typing    *time.Timer
	typingGen uint64
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) User() models.User {
	return s.user
}

// Frames queued for the connection. Closed when session removed from hub
func (s *Session) Send() <-chan []byte {
	return s.send
}

// Stop pending typing timer. A callback already fired sees another generation and does nothing
func (s *Session) cancelTyping() {
	if s.typing != nil {
		s.typing.Stop()
		s.typing = nil
	}
	s.typingGen++
}
