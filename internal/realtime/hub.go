package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/logger"
	"github.com/nkiryanov/chatrooms/internal/metrics"
	"github.com/nkiryanov/chatrooms/internal/models"
)

const (
	defaultTypingTTL = 3 * time.Second
	defaultSendQueue = 256
)

// Connection is unknown to the hub: never registered, already gone or owned by another user
var ErrConnectionNotFound = errors.New("connection not found")

type Config struct {
	// How long 'userTyping' lasts without a new typing event
	TypingTTL time.Duration

	// Frames buffered per connection. Session with full buffer is dropped
	SendQueue int
}

// Hub is the in-process registry of live connections and their room bindings.
//
// Every state transition runs to completion under one mutex, so a session is
// bound to at most one room and the per-room index always agrees with
// session bindings. Nothing under the lock blocks: frames are enqueued to
// buffered channels and the connection write pumps drain them.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	rooms    map[uuid.UUID]map[string]*Session
	closed   bool

	typingTTL time.Duration
	sendQueue int

	logger logger.Logger
}

func NewHub(cfg Config, l logger.Logger) *Hub {
	if cfg.TypingTTL == 0 {
		cfg.TypingTTL = defaultTypingTTL
	}
	if cfg.SendQueue == 0 {
		cfg.SendQueue = defaultSendQueue
	}

	return &Hub{
		sessions:  make(map[string]*Session),
		rooms:     make(map[uuid.UUID]map[string]*Session),
		typingTTL: cfg.TypingTTL,
		sendQueue: cfg.SendQueue,
		logger:    l,
	}
}

// Accept registers new connection for the user and queues 'connected' event with its id
func (h *Hub) Accept(user models.User) *Session {
	s := &Session{
		id:   uuid.NewString(),
		user: user,
		send: make(chan []byte, h.sendQueue),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Hub is shut down: the write pump sees closed queue and closes the connection
	if h.closed {
		close(s.send)
		return s
	}

	h.sessions[s.id] = s
	metrics.WsConnections.Inc()
	h.enqueueLocked(s, EventConnected, mustEncode(EventConnected, Connected{SocketID: s.id}))

	h.logger.Debug("connection accepted", "connID", s.id, "userID", user.ID)
	return s
}

// Remove session from the hub. Safe to call many times
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[connID]; ok {
		h.removeLocked(s)
	}
}

// SetRoom binds the connection to the room, unbinding it from the previous one.
// Pending typing timer is cancelled silently if the room changes.
func (h *Hub) SetRoom(connID string, userID uuid.UUID, roomID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || s.user.ID != userID {
		return ErrConnectionNotFound
	}

	if s.room == roomID {
		return nil
	}

	h.unbindLocked(s)

	s.room = roomID
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[roomID] = members
	}
	members[s.id] = s

	h.logger.Debug("connection bound to room", "connID", s.id, "userID", s.user.ID, "roomID", roomID)
	return nil
}

// Leave unbinds the connection if it is bound to the room
func (h *Hub) Leave(connID string, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || s.room != roomID {
		return
	}
	h.unbindLocked(s)
	h.logger.Debug("connection left room", "connID", s.id, "userID", s.user.ID, "roomID", roomID)
}

// Room the connection is bound to
func (h *Hub) Room(connID string) (uuid.UUID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || s.room == uuid.Nil {
		return uuid.Nil, false
	}
	return s.room, true
}

// Number of connections bound to the room
func (h *Hub) Online(roomID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// Number of live connections
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Typing tells others in the room the user is typing and (re)arms the stop timer.
// Ignored unless the connection is bound to the room: a client can't announce typing where it is not.
func (h *Hub) Typing(connID string, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok || roomID == uuid.Nil || s.room != roomID {
		return
	}

	h.broadcastLocked(roomID, EventUserTyping, s.user.Username, func(other *Session) bool {
		return other.id != s.id
	})

	s.cancelTyping()
	gen := s.typingGen
	s.typing = time.AfterFunc(h.typingTTL, func() {
		h.typingExpired(s, gen)
	})
}

func (h *Hub) typingExpired(s *Session, gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.typingGen != gen || s.typing == nil || h.sessions[s.id] != s {
		return
	}
	s.typing = nil

	h.broadcastLocked(s.room, EventUserStoppedTyping, s.user.Username, func(other *Session) bool {
		return other.id != s.id
	})
}

// StopTyping cancels typing timers of the user in the room and tells the others
func (h *Hub) StopTyping(user models.User, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.rooms[roomID] {
		if s.user.ID == user.ID {
			s.cancelTyping()
		}
	}

	h.broadcastLocked(roomID, EventUserStoppedTyping, user.Username, func(other *Session) bool {
		return other.user.ID != user.ID
	})
}

// Broadcast event to every connection bound to the room
func (h *Hub) Broadcast(roomID uuid.UUID, event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(roomID, event, data, nil)
}

// CloseRoom unbinds every connection from deleted room and tells them about it
func (h *Hub) CloseRoom(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frame, err := encode(EventChatRoomDeleted, roomID)
	if err != nil {
		h.logger.Error("can't encode event", "event", EventChatRoomDeleted, "error", err)
		return
	}

	for _, s := range h.rooms[roomID] {
		s.cancelTyping()
		s.room = uuid.Nil
		h.enqueueLocked(s, EventChatRoomDeleted, frame)
	}
	delete(h.rooms, roomID)

	h.logger.Debug("room closed", "roomID", roomID)
}

// DisconnectUser drops every connection of the user
func (h *Hub) DisconnectUser(userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sessions {
		if s.user.ID == userID {
			h.removeLocked(s)
		}
	}
}

// Close drops every connection and refuses new ones. Used on server shutdown:
// hijacked websocket connections are not closed by http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, s := range h.sessions {
		h.removeLocked(s)
	}

	h.logger.Info("hub closed")
}

func (h *Hub) broadcastLocked(roomID uuid.UUID, event string, data any, filter func(*Session) bool) {
	members := h.rooms[roomID]
	if len(members) == 0 {
		return
	}

	frame, err := encode(event, data)
	if err != nil {
		h.logger.Error("can't encode event", "event", event, "roomID", roomID, "error", err)
		return
	}

	for _, s := range members {
		if filter != nil && !filter(s) {
			continue
		}
		h.enqueueLocked(s, event, frame)
	}
}

// Queue frame without blocking. Slow consumer is dropped
func (h *Hub) enqueueLocked(s *Session, event string, frame []byte) {
	select {
	case s.send <- frame:
		metrics.WsEventsTotal.WithLabelValues(event).Inc()
	default:
		metrics.WsSlowConsumersTotal.Inc()
		h.logger.Warn("send queue is full, dropping connection", "connID", s.id, "userID", s.user.ID, "roomID", s.room)
		h.removeLocked(s)
	}
}

func (h *Hub) unbindLocked(s *Session) {
	s.cancelTyping()
	if s.room == uuid.Nil {
		return
	}

	if members, ok := h.rooms[s.room]; ok {
		delete(members, s.id)
		if len(members) == 0 {
			delete(h.rooms, s.room)
		}
	}
	s.room = uuid.Nil
}

func (h *Hub) removeLocked(s *Session) {
	if h.sessions[s.id] != s {
		return
	}

	h.unbindLocked(s)
	delete(h.sessions, s.id)
	close(s.send)
	metrics.WsConnections.Dec()

	h.logger.Debug("connection removed", "connID", s.id, "userID", s.user.ID)
}

func mustEncode(event string, data any) []byte {
	frame, err := encode(event, data)
	if err != nil {
		panic(err)
	}
	return frame
}
