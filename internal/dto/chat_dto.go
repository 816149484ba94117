package dto

import (
	"time"

	"github.com/noah-isme/blogsphere-api/internal/models"
)

// UserSummary is the public profile embedded in chat and notification payloads.
type UserSummary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// NewUserSummary converts a user model to its public summary.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
}

// ConversationCreateRequest opens or fetches the conversation with receiverId.
type ConversationCreateRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,max=64"`
}

// MessageResponse is a message with its sender populated.
type MessageResponse struct {
	ID             uint        `json:"_id"`
	ConversationID uint        `json:"conversationId"`
	Sender         UserSummary `json:"sender"`
	Content        string      `json:"content"`
	IsEdited       bool        `json:"isEdited"`
	IsDeleted      bool        `json:"isDeleted"`
	ReadBy         []string    `json:"readBy"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// ConversationResponse is a conversation with participants and last message populated.
type ConversationResponse struct {
	ID           uint             `json:"_id"`
	Participants []UserSummary    `json:"participants"`
	LastMessage  *MessageResponse `json:"lastMessage"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// NewMessageResponse converts a message model; sender falls back to a bare id
// when the profile is unknown.
func NewMessageResponse(message models.Message, users map[string]UserSummary) MessageResponse {
	readBy := []string(message.ReadBy)
	if readBy == nil {
		readBy = []string{}
	}

	return MessageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Sender:         lookupUser(users, message.SenderID),
		Content:        message.Content,
		IsEdited:       message.IsEdited,
		IsDeleted:      message.IsDeleted,
		ReadBy:         readBy,
		CreatedAt:      message.CreatedAt,
		UpdatedAt:      message.UpdatedAt,
	}
}

// NewConversationResponse converts a conversation model. When viewerID is not
// empty the viewer is omitted from the participant list.
func NewConversationResponse(conversation models.Conversation, lastMessage *models.Message, users map[string]UserSummary, viewerID string) ConversationResponse {
	participants := make([]UserSummary, 0, 2)
	for _, participantID := range conversation.Participants() {
		if viewerID != "" && participantID == viewerID {
			continue
		}
		participants = append(participants, lookupUser(users, participantID))
	}

	response := ConversationResponse{
		ID:           conversation.ID,
		Participants: participants,
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}
	if lastMessage != nil {
		last := NewMessageResponse(*lastMessage, users)
		response.LastMessage = &last
	}
	return response
}

func lookupUser(users map[string]UserSummary, id string) UserSummary {
	if user, ok := users[id]; ok {
		return user
	}
	return UserSummary{ID: id}
}

// SendMessagePayload is the data of a sendMessage frame.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId" validate:"required,max=64"`
	Content    string `json:"content" validate:"required,max=4000"`
}

// EditMessagePayload is the data of an editMessage frame.
type EditMessagePayload struct {
	MessageID  uint   `json:"messageId" validate:"required"`
	NewContent string `json:"newContent" validate:"required,max=4000"`
}

// DeleteMessagePayload is the data of a deleteMessage frame.
type DeleteMessagePayload struct {
	MessageID uint `json:"messageId" validate:"required"`
}

// ConversationRef carries a conversation id for typing and room frames.
type ConversationRef struct {
	ConversationID uint `json:"conversationId" validate:"required"`
}

// MessageEditedEvent is broadcast after a successful edit.
type MessageEditedEvent struct {
	MessageID      uint   `json:"messageId"`
	ConversationID uint   `json:"conversationId"`
	NewContent     string `json:"newContent"`
}

// MessageDeletedEvent is broadcast after a successful delete.
type MessageDeletedEvent struct {
	MessageID      uint `json:"messageId"`
	ConversationID uint `json:"conversationId"`
}

// ErrorEvent reports a failed client operation back to its originator.
type ErrorEvent struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
