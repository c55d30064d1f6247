package realtime

import (
	"encoding/json"
)

// Server to client events
const (
	EventConnected         = "connected"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventAddMessage        = "addMessage"
	EventEditMessage       = "editMessage"
	EventDeleteMessage     = "deleteMessage"
	EventChatRoomDeleted   = "chatRoomDeleted"
)

// Client to server events. Typing shares its name with the outbound one
const (
	EventLeaveChatRoom = "leaveChatRoom"
)

// Every frame on the wire is an envelope
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Connected struct {
	SocketID string `json:"socketId"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}
