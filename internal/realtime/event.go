// Package realtime holds the in-memory connection state shared by the chat
// transport: who is online, which connections watch which conversation, and
// the envelope every websocket frame is wrapped in.
package realtime

import "encoding/json"

// Server to client events.
const (
	EventOnlineUsers         = "getOnlineUsers"
	EventNewMessage          = "newMessage"
	EventConversationUpdated = "conversationUpdated"
	EventMessageEdited       = "messageEdited"
	EventMessageDeleted      = "messageDeleted"
	EventTypingStarted       = "typingStarted"
	EventTypingStopped       = "typingStopped"
	EventNewNotification     = "newNotification"
	EventError               = "error"
)

// Client to server events.
const (
	EventSendMessage   = "sendMessage"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
	EventStartTyping   = "startTyping"
	EventStopTyping    = "stopTyping"
	EventJoinRoom      = "joinRoom"
	EventLeaveRoom     = "leaveRoom"
)

// Event is an outbound frame.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Inbound is a client frame whose payload is decoded by the event's handler.
type Inbound struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// NewEvent builds an outbound frame.
func NewEvent(name string, data interface{}) Event {
	return Event{Name: name, Data: data}
}

// Conn is a live connection the registries can deliver events to.
type Conn interface {
	ID() string
	UserID() string
	// Deliver enqueues the event without blocking and reports whether it was
	// accepted. A full queue or a closed connection rejects the event.
	Deliver(event Event) bool
}
