package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/observability"
	"github.com/noah-isme/blogsphere-api/internal/realtime"
)

const (
	defaultChatSendBuffer   = 64
	defaultChatPingInterval = 30 * time.Second
)

// Error codes carried by error frames.
const (
	ChatErrorUnauthorized      = "unauthorized"
	ChatErrorForbidden         = "forbidden"
	ChatErrorNotFound          = "not_found"
	ChatErrorEditWindowExpired = "edit_window_expired"
	ChatErrorInvalidPayload    = "invalid_payload"
	ChatErrorInternal          = "internal"
	ChatErrorUnknownEvent      = "unknown_event"
)

// SessionState is the lifecycle stage of a websocket session.
type SessionState string

const (
	SessionConnecting     SessionState = "connecting"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated  SessionState = "authenticated"
	SessionDisconnected   SessionState = "disconnected"
)

// ChatTransport is the websocket surface a session needs. *websocket.Conn satisfies it.
type ChatTransport interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        string
	CorrelationID string
	Context       context.Context
}

// ChatServiceConfig tunes per-connection buffers and keepalive.
type ChatServiceConfig struct {
	SendBuffer   int
	PingInterval time.Duration
}

// ChatService runs websocket chat sessions.
type ChatService interface {
	ServeConnection(conn ChatTransport, opts ChatConnectionOptions)
	OnlineUsers() []string
}

type eventHandler func(ctx context.Context, client *chatClient, data json.RawMessage) error

type chatService struct {
	conversations ConversationService
	presence      *realtime.Presence
	rooms         *realtime.Rooms
	validator     *validator.Validate
	logger        zerolog.Logger
	handlers      map[string]eventHandler
	sendBuffer    int
	pingInterval  time.Duration
}

type chatClient struct {
	id         string
	userID     string
	conn       ChatTransport
	send       chan realtime.Event
	closed     chan struct{}
	writerDone chan struct{}
	once       sync.Once
	service    *chatService
	logger     zerolog.Logger

	mu    sync.Mutex
	state SessionState
}

// NewChatService creates the websocket session handler.
func NewChatService(conversations ConversationService, presence *realtime.Presence, rooms *realtime.Rooms, validate *validator.Validate, logger zerolog.Logger, cfg ChatServiceConfig) ChatService {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultChatSendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultChatPingInterval
	}

	s := &chatService{
		conversations: conversations,
		presence:      presence,
		rooms:         rooms,
		validator:     validate,
		logger:        logger.With().Str("component", "chat_service").Logger(),
		sendBuffer:    cfg.SendBuffer,
		pingInterval:  cfg.PingInterval,
	}

	s.handlers = map[string]eventHandler{
		realtime.EventSendMessage:   s.handleSendMessage,
		realtime.EventEditMessage:   s.handleEditMessage,
		realtime.EventDeleteMessage: s.handleDeleteMessage,
		realtime.EventStartTyping:   s.handleTyping(realtime.EventTypingStarted),
		realtime.EventStopTyping:    s.handleTyping(realtime.EventTypingStopped),
		realtime.EventJoinRoom:      s.handleJoinRoom,
		realtime.EventLeaveRoom:     s.handleLeaveRoom,
	}

	return s
}

func (s *chatService) OnlineUsers() []string {
	return s.presence.Online()
}

// ServeConnection runs the session until the transport closes. The caller
// must have authenticated the handshake; an empty identity is refused. The
// transport is not written to after ServeConnection returns.
func (s *chatService) ServeConnection(conn ChatTransport, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &chatClient{
		id:      uuid.NewString(),
		userID:  strings.TrimSpace(opts.UserID),
		conn:    conn,
		send:       make(chan realtime.Event, s.sendBuffer),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
		service:    s,
		state:      SessionConnecting,
	}
	client.logger = s.logger.With().
		Str("connection_id", client.id).
		Str("user_id", client.userID).
		Str("correlation_id", opts.CorrelationID).
		Logger()

	client.transition(SessionAuthenticating)
	if client.userID == "" {
		_ = conn.WriteJSON(realtime.NewEvent(realtime.EventError, dto.ErrorEvent{
			Code:    ChatErrorUnauthorized,
			Message: "authentication required",
		}))
		_ = conn.Close()
		client.transition(SessionDisconnected)
		return
	}
	client.transition(SessionAuthenticated)

	s.connect(client)
	defer s.disconnect(client)

	go client.writer()
	// Persistence outlives the connection: a write started before disconnect completes.
	client.reader(context.WithoutCancel(baseCtx))
}

func (s *chatService) connect(client *chatClient) {
	if previous, replaced := s.presence.Register(client.userID, client); replaced {
		client.logger.Info().Str("previous_connection_id", previous.ID()).Msg("chat connection replaced previous session")
	}

	observability.ChatConnectionsTotal().Inc()
	observability.ChatConnectionsActive().Inc()
	observability.PresenceOnlineUsers().Set(float64(s.presence.Count()))
	s.broadcastOnline()
}

func (s *chatService) disconnect(client *chatClient) {
	client.close()
	<-client.writerDone
	s.rooms.LeaveAll(client)

	if s.presence.Unregister(client.userID, client) {
		observability.PresenceOnlineUsers().Set(float64(s.presence.Count()))
		s.broadcastOnline()
	}

	observability.ChatConnectionsActive().Dec()
	client.transition(SessionDisconnected)
}

func (s *chatService) broadcastOnline() {
	event := realtime.NewEvent(realtime.EventOnlineUsers, s.presence.Online())
	if dropped := s.presence.Broadcast(event); dropped > 0 {
		observability.ChatDroppedEvents().WithLabelValues(realtime.EventOnlineUsers).Add(float64(dropped))
		s.logger.Warn().Int("dropped", dropped).Msg("dropping online users event for slow clients")
	}
}

// dispatch is the single place client events are routed, failures reported
// and handler panics contained.
func (s *chatService) dispatch(ctx context.Context, client *chatClient, inbound realtime.Inbound) {
	handler, ok := s.handlers[inbound.Name]
	if !ok {
		observability.ChatEvents().WithLabelValues("unknown", "rejected").Inc()
		s.fail(client, inbound.Name, ErrUnknownEvent)
		return
	}

	if err := s.invoke(ctx, handler, client, inbound); err != nil {
		observability.ChatEvents().WithLabelValues(inbound.Name, "failed").Inc()
		s.fail(client, inbound.Name, err)
		return
	}

	observability.ChatEvents().WithLabelValues(inbound.Name, "ok").Inc()
}

func (s *chatService) invoke(ctx context.Context, handler eventHandler, client *chatClient, inbound realtime.Inbound) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("chat handler panic: %v", recovered)
		}
	}()
	return handler(ctx, client, inbound.Data)
}

func (s *chatService) fail(client *chatClient, event string, err error) {
	code, message := classifyChatError(err)

	entry := client.logger.Warn()
	if code == ChatErrorInternal {
		entry = client.logger.Error()
	}
	entry.Err(err).Str("event", event).Str("code", code).Msg("chat event failed")

	s.deliver(client, realtime.NewEvent(realtime.EventError, dto.ErrorEvent{
		Event:   event,
		Code:    code,
		Message: message,
	}))
}

func classifyChatError(err error) (string, string) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return ChatErrorUnknownEvent, ErrUnknownEvent.Error()
	case errors.Is(err, ErrInvalidPayload), errors.As(err, &validationErrs):
		return ChatErrorInvalidPayload, ErrInvalidPayload.Error()
	case errors.Is(err, ErrInvalidMessageContent), errors.Is(err, ErrReceiverRequired), errors.Is(err, ErrSelfConversation):
		return ChatErrorInvalidPayload, err.Error()
	case errors.Is(err, ErrEditWindowExpired):
		return ChatErrorEditWindowExpired, err.Error()
	case errors.Is(err, ErrNotMessageSender), errors.Is(err, ErrNotParticipant), errors.Is(err, ErrMessageDeleted):
		return ChatErrorForbidden, err.Error()
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrConversationNotFound):
		return ChatErrorNotFound, err.Error()
	default:
		return ChatErrorInternal, "internal error"
	}
}

func (s *chatService) handleSendMessage(ctx context.Context, client *chatClient, data json.RawMessage) error {
	var payload dto.SendMessagePayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	result, err := s.conversations.SendMessage(ctx, client.userID, payload.ReceiverID, payload.Content)
	if err != nil {
		return err
	}

	s.deliverToUsers(result.Participants,
		realtime.NewEvent(realtime.EventNewMessage, result.Message),
		realtime.NewEvent(realtime.EventConversationUpdated, result.Conversation),
	)
	return nil
}

func (s *chatService) handleEditMessage(ctx context.Context, client *chatClient, data json.RawMessage) error {
	var payload dto.EditMessagePayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	result, err := s.conversations.EditMessage(ctx, client.userID, payload.MessageID, payload.NewContent)
	if err != nil {
		return err
	}

	s.deliverToUsers(result.Participants,
		realtime.NewEvent(realtime.EventMessageEdited, dto.MessageEditedEvent{
			MessageID:      result.Message.ID,
			ConversationID: result.Message.ConversationID,
			NewContent:     result.Message.Content,
		}),
		realtime.NewEvent(realtime.EventConversationUpdated, result.Conversation),
	)
	return nil
}

func (s *chatService) handleDeleteMessage(ctx context.Context, client *chatClient, data json.RawMessage) error {
	var payload dto.DeleteMessagePayload
	if err := s.decode(data, &payload); err != nil {
		return err
	}

	result, err := s.conversations.DeleteMessage(ctx, client.userID, payload.MessageID)
	if err != nil {
		return err
	}

	s.deliverToUsers(result.Participants,
		realtime.NewEvent(realtime.EventMessageDeleted, dto.MessageDeletedEvent{
			MessageID:      result.Message.ID,
			ConversationID: result.Message.ConversationID,
		}),
		realtime.NewEvent(realtime.EventConversationUpdated, result.Conversation),
	)
	return nil
}

// handleTyping relays a typing indicator to the other members of a room the
// sender has joined. Nothing is stored and nothing is acknowledged: a sender
// outside the room is ignored.
func (s *chatService) handleTyping(outbound string) eventHandler {
	return func(_ context.Context, client *chatClient, data json.RawMessage) error {
		conversationID, err := parseConversationID(data)
		if err != nil {
			return err
		}
		if !s.rooms.IsMember(conversationID, client) {
			client.logger.Debug().Uint("conversation_id", conversationID).Str("event", outbound).Msg("ignoring typing outside joined room")
			return nil
		}

		s.rooms.Broadcast(conversationID, realtime.NewEvent(outbound, dto.ConversationRef{ConversationID: conversationID}), client.id)
		return nil
	}
}

func (s *chatService) handleJoinRoom(ctx context.Context, client *chatClient, data json.RawMessage) error {
	conversationID, err := parseConversationID(data)
	if err != nil {
		return err
	}

	ok, err := s.conversations.IsParticipant(ctx, conversationID, client.userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}

	s.rooms.Join(conversationID, client)
	client.logger.Debug().Uint("conversation_id", conversationID).Msg("joined chat room")
	return nil
}

func (s *chatService) handleLeaveRoom(_ context.Context, client *chatClient, data json.RawMessage) error {
	conversationID, err := parseConversationID(data)
	if err != nil {
		return err
	}

	s.rooms.Leave(conversationID, client)
	client.logger.Debug().Uint("conversation_id", conversationID).Msg("left chat room")
	return nil
}

func (s *chatService) decode(data json.RawMessage, target interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := s.validator.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// parseConversationID accepts a bare id, a quoted id or {"conversationId": id}.
func parseConversationID(data json.RawMessage) (uint, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, ErrInvalidPayload
	}

	var id uint
	switch trimmed[0] {
	case '{':
		var ref dto.ConversationRef
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		id = ref.ConversationID
	case '"':
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		id = uint(parsed)
	default:
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	if id == 0 {
		return 0, ErrInvalidPayload
	}
	return id, nil
}

// deliverToUsers sends events to the live connection of each user, skipping
// users who are offline.
func (s *chatService) deliverToUsers(userIDs []string, events ...realtime.Event) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}

		conn, ok := s.presence.Lookup(userID)
		if !ok {
			continue
		}
		for _, event := range events {
			s.deliver(conn, event)
		}
	}
}

func (s *chatService) deliver(conn realtime.Conn, event realtime.Event) {
	if conn.Deliver(event) {
		return
	}
	observability.ChatDroppedEvents().WithLabelValues(event.Name).Inc()
	s.logger.Warn().Str("user_id", conn.UserID()).Str("event", event.Name).Msg("dropping chat event for slow client")
}

func (c *chatClient) ID() string     { return c.id }
func (c *chatClient) UserID() string { return c.userID }

func (c *chatClient) Deliver(event realtime.Event) bool {
	if c.isClosed() {
		return false
	}

	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *chatClient) transition(next SessionState) {
	c.mu.Lock()
	previous := c.state
	c.state = next
	c.mu.Unlock()

	c.logger.Debug().Str("from", string(previous)).Str("to", string(next)).Msg("chat session state changed")
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *chatClient) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *chatClient) idleTimeout() time.Duration {
	return 2 * c.service.pingInterval
}

func (c *chatClient) reader(ctx context.Context) {
	defer c.close()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout()))
	})

	for {
		var inbound realtime.Inbound
		if err := c.conn.ReadJSON(&inbound); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.service.fail(c, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
				continue
			}
			c.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout()))
		c.service.dispatch(ctx, c, inbound)
	}
}

func (c *chatClient) writer() {
	defer close(c.writerDone)
	defer c.close()

	ticker := time.NewTicker(c.service.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			if c.isClosed() {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-ticker.C:
			if c.isClosed() {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}
