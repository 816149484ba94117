package models

import "time"

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
	NotificationFollow  NotificationType = "follow"
	NotificationChat    NotificationType = "chat"
)

// NotificationTypes lists every accepted notification type.
var NotificationTypes = []NotificationType{
	NotificationLike,
	NotificationComment,
	NotificationReply,
	NotificationFollow,
	NotificationChat,
}

// Notification is an entry in a recipient's notification feed.
//
// ChatSenderID is only set for chat notifications. Together with RecipientID
// it forms a unique pair, which keeps a single row per sender and recipient.
// NULL never conflicts, so every other type inserts a new row.
type Notification struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	RecipientID  string           `gorm:"size:64;not null;index:idx_notifications_recipient_read;uniqueIndex:idx_notifications_chat_pair,priority:1" json:"recipient_id"`
	SenderID     string           `gorm:"size:64;not null;index" json:"sender_id"`
	Type         NotificationType `gorm:"size:16;not null" json:"type"`
	PostID       *string          `gorm:"size:64" json:"post_id,omitempty"`
	Read         bool             `gorm:"not null;default:false;index:idx_notifications_recipient_read" json:"read"`
	Revision     int              `gorm:"not null;default:0" json:"revision"`
	ChatSenderID *string          `gorm:"size:64;uniqueIndex:idx_notifications_chat_pair,priority:2" json:"-"`
	CreatedAt    time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}
