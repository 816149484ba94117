package dto

import (
	"time"

	"github.com/noah-isme/blogsphere-api/internal/models"
)

// NotificationCreateRequest is submitted by the content services when a user
// likes, comments, replies or follows. The sender is the authenticated caller.
type NotificationCreateRequest struct {
	RecipientID string  `json:"recipientId" validate:"required,max=64"`
	Type        string  `json:"type" validate:"required,oneof=like comment reply follow chat"`
	PostID      *string `json:"postId" validate:"omitempty,max=64"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID          uint        `json:"_id"`
	RecipientID string      `json:"recipient"`
	Sender      UserSummary `json:"sender"`
	Type        string      `json:"type"`
	PostID      *string     `json:"post,omitempty"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// UnreadCountResponse carries the recipient's unread notification count. It is
// also the payload of the newNotification event.
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

// NotificationTriggerResponse reports the outcome of a notification request.
type NotificationTriggerResponse struct {
	Suppressed   bool                  `json:"suppressed"`
	Notification *NotificationResponse `json:"notification,omitempty"`
	UnreadCount  int64                 `json:"unreadCount"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification, users map[string]UserSummary) NotificationResponse {
	return NotificationResponse{
		ID:          model.ID,
		RecipientID: model.RecipientID,
		Sender:      lookupUser(users, model.SenderID),
		Type:        string(model.Type),
		PostID:      model.PostID,
		Read:        model.Read,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
