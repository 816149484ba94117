// Package events mirrors committed chat mutations onto NATS so other services
// (search indexing, analytics, mobile push) can follow the conversation log
// without reading the chat tables.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Chat event types.
const (
	TypeMessageCreated = "message.created"
	TypeMessageEdited  = "message.edited"
	TypeMessageDeleted = "message.deleted"
)

// ChatEvent describes a committed change to a conversation.
type ChatEvent struct {
	Type           string    `json:"type"`
	ConversationID uint      `json:"conversation_id"`
	MessageID      uint      `json:"message_id"`
	ActorID        string    `json:"actor_id"`
	Participants   []string  `json:"participants"`
	OccurredAt     time.Time `json:"occurred_at"`
	Source         string    `json:"source"`
}

// Publisher emits chat events.
type Publisher interface {
	Publish(ctx context.Context, event ChatEvent) error
}

// messageConn is the subset of *nats.Conn used for publishing.
type messageConn interface {
	Publish(subject string, data []byte) error
}

type natsPublisher struct {
	conn    messageConn
	subject string
	source  string
	logger  zerolog.Logger
}

// NewNATSPublisher publishes onto subject. A nil connection yields a publisher
// that drops every event, which keeps NATS optional in development.
func NewNATSPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) Publisher {
	if conn == nil || subject == "" {
		return NopPublisher{}
	}
	return newPublisher(conn, subject, logger)
}

func newPublisher(conn messageConn, subject string, logger zerolog.Logger) *natsPublisher {
	return &natsPublisher{
		conn:    conn,
		subject: subject,
		source:  uuid.NewString(),
		logger:  logger.With().Str("component", "chat_events").Logger(),
	}
}

func (p *natsPublisher) Publish(ctx context.Context, event ChatEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = p.source

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal chat event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish chat event: %w", err)
	}

	p.logger.Debug().
		Str("type", event.Type).
		Uint("conversation_id", event.ConversationID).
		Uint("message_id", event.MessageID).
		Msg("chat event published")
	return nil
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ChatEvent) error { return nil }
