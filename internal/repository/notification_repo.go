package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/blogsphere-api/internal/models"
)

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	UpsertChat(ctx context.Context, recipientID, senderID string) (models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	DeleteChatFrom(ctx context.Context, recipientID, senderID string) (int64, error)
}

type notificationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db, now: time.Now}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// UpsertChat keeps a single chat notification per sender and recipient. An
// existing row is flipped back to unread and its revision bumped; otherwise a
// new unread row is inserted. Both paths are one statement.
func (r *notificationRepository) UpsertChat(ctx context.Context, recipientID, senderID string) (models.Notification, error) {
	now := r.now().UTC()
	chatSender := senderID

	candidate := models.Notification{
		RecipientID:  recipientID,
		SenderID:     senderID,
		Type:         models.NotificationChat,
		ChatSenderID: &chatSender,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "recipient_id"}, {Name: "chat_sender_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"read":       false,
				"revision":   gorm.Expr("notifications.revision + 1"),
				"updated_at": now,
			}),
		}).
		Create(&candidate).Error
	if err != nil {
		return models.Notification{}, fmt.Errorf("upsert chat notification: %w", err)
	}

	var stored models.Notification
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND chat_sender_id = ?", recipientID, senderID).
		First(&stored).Error; err != nil {
		return models.Notification{}, err
	}
	return stored, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Updates(map[string]interface{}{"read": true, "updated_at": r.now().UTC()})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *notificationRepository) DeleteChatFrom(ctx context.Context, recipientID, senderID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND chat_sender_id = ?", recipientID, senderID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
