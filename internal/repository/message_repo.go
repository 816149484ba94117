package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/blogsphere-api/internal/models"
)

// MessageRepository persists chat messages and keeps the conversation's
// last-message pointer in step with them.
type MessageRepository interface {
	CreateInConversation(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id uint) (models.Message, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Message, error)
	ListByConversation(ctx context.Context, conversationID uint) ([]models.Message, error)
	Update(ctx context.Context, message *models.Message) error
	SoftDelete(ctx context.Context, message *models.Message) (models.Conversation, error)
	LatestVisible(ctx context.Context, conversationID uint) (*models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// CreateInConversation stores the message and points the conversation at it in one transaction.
func (r *messageRepository) CreateInConversation(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		result := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			UpdateColumns(map[string]interface{}{
				"last_message_id": message.ID,
				"updated_at":      message.CreatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("update last message: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *messageRepository) FindByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var messages []models.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Update writes the content and edit/delete flags of an existing message.
func (r *messageRepository) Update(ctx context.Context, message *models.Message) error {
	result := r.db.WithContext(ctx).
		Model(message).
		Select("content", "is_edited", "is_deleted", "updated_at").
		Updates(message)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete persists a deleted message and, when it was the conversation's last
// message, re-points the conversation at the newest message still visible.
// The returned conversation reflects the pointer after the change.
func (r *messageRepository) SoftDelete(ctx context.Context, message *models.Message) (models.Conversation, error) {
	var conversation models.Conversation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(message).
			Select("content", "is_edited", "is_deleted", "updated_at").
			Updates(message)
		if result.Error != nil {
			return fmt.Errorf("soft delete message: %w", result.Error)
		}

		if err := tx.First(&conversation, message.ConversationID).Error; err != nil {
			return err
		}

		if conversation.LastMessageID == nil || *conversation.LastMessageID != message.ID {
			return nil
		}

		latest, err := latestVisible(tx, conversation.ID)
		if err != nil {
			return err
		}

		var next *uint
		if latest != nil {
			next = &latest.ID
		}

		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversation.ID).
			UpdateColumn("last_message_id", next).Error; err != nil {
			return fmt.Errorf("repoint last message: %w", err)
		}
		conversation.LastMessageID = next
		return nil
	})
	if err != nil {
		return models.Conversation{}, err
	}

	return conversation, nil
}

func (r *messageRepository) LatestVisible(ctx context.Context, conversationID uint) (*models.Message, error) {
	return latestVisible(r.db.WithContext(ctx), conversationID)
}

func latestVisible(db *gorm.DB, conversationID uint) (*models.Message, error) {
	var message models.Message
	err := db.Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC").
		Order("id DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}
