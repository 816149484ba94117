package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MessageDeletedPlaceholder replaces the content of a soft-deleted message.
const MessageDeletedPlaceholder = "This message was deleted."

// User is the read-only projection of an account owned by the user service.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Avatar    string    `gorm:"size:512" json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation pairs exactly two users. ParticipantLow and ParticipantHigh hold
// the pair in sorted order under a composite unique index, so find-or-create
// can be a single conditional insert whatever characters the identities carry.
type Conversation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ParticipantA    string    `gorm:"size:64;index;not null" json:"participant_a"`
	ParticipantB    string    `gorm:"size:64;index;not null" json:"participant_b"`
	ParticipantLow  string    `gorm:"size:64;not null;uniqueIndex:idx_conversations_pair,priority:1" json:"-"`
	ParticipantHigh string    `gorm:"size:64;not null;uniqueIndex:idx_conversations_pair,priority:2" json:"-"`
	LastMessageID   *uint     `gorm:"index" json:"last_message_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `gorm:"index" json:"updated_at"`
}

// ConversationHide records that a participant hid a conversation from their own list.
type ConversationHide struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         string    `gorm:"primaryKey;size:64" json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is a single chat message. Deletion is soft: the content is replaced
// with MessageDeletedPlaceholder and IsDeleted is set.
type Message struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	ConversationID uint                        `gorm:"index:idx_messages_conversation_created;not null" json:"conversation_id"`
	SenderID       string                      `gorm:"size:64;index;not null" json:"sender_id"`
	Content        string                      `gorm:"type:text;not null" json:"content"`
	IsEdited       bool                        `gorm:"not null;default:false" json:"is_edited"`
	IsDeleted      bool                        `gorm:"not null;default:false" json:"is_deleted"`
	ReadBy         datatypes.JSONSlice[string] `json:"read_by"`
	CreatedAt      time.Time                   `gorm:"index:idx_messages_conversation_created" json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// ConversationPair returns the two identities in sorted order.
func ConversationPair(a, b string) (low, high string) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b < a {
		return b, a
	}
	return a, b
}

// NewConversation builds an unsaved conversation with the initiator first.
func NewConversation(initiator, other string) Conversation {
	low, high := ConversationPair(initiator, other)
	return Conversation{
		ParticipantA:    initiator,
		ParticipantB:    other,
		ParticipantLow:  low,
		ParticipantHigh: high,
	}
}

// Participants returns both participant identities in stored order.
func (c Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// Counterpart returns the participant that is not userID.
func (c Conversation) Counterpart(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// WithinWindow reports whether reference lies no later than window after creation.
func (m Message) WithinWindow(reference time.Time, window time.Duration) bool {
	return reference.Sub(m.CreatedAt) <= window
}
