package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/blogsphere-api/internal/models"
)

// ConversationRepository persists two-party conversations and per-user hidden state.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, initiatorID, otherID string) (models.Conversation, bool, error)
	FindByID(ctx context.Context, id uint) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string, hidden bool) ([]models.Conversation, error)
	Hide(ctx context.Context, conversationID uint, userID string) error
	Unhide(ctx context.Context, conversationID uint, userID string) error
	IsHiddenBy(ctx context.Context, conversationID uint, userID string) (bool, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindOrCreate inserts the conversation unless one already exists for the pair.
// The insert is conditional on the unique sorted pair, so concurrent calls
// from both participants converge on a single row.
func (r *conversationRepository) FindOrCreate(ctx context.Context, initiatorID, otherID string) (models.Conversation, bool, error) {
	candidate := models.NewConversation(initiatorID, otherID)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participant_low"}, {Name: "participant_high"}},
			DoNothing: true,
		}).
		Create(&candidate)
	if result.Error != nil {
		return models.Conversation{}, false, fmt.Errorf("upsert conversation: %w", result.Error)
	}

	var stored models.Conversation
	if err := r.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ?", candidate.ParticipantLow, candidate.ParticipantHigh).
		First(&stored).Error; err != nil {
		return models.Conversation{}, false, err
	}

	return stored, result.RowsAffected > 0, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string, hidden bool) ([]models.Conversation, error) {
	hiddenBy := r.db.Model(&models.ConversationHide{}).
		Select("1").
		Where("conversation_hides.conversation_id = conversations.id AND conversation_hides.user_id = ?", userID)

	query := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("participant_a = ? OR participant_b = ?", userID, userID)

	if hidden {
		query = query.Where("EXISTS (?)", hiddenBy)
	} else {
		query = query.Where("NOT EXISTS (?)", hiddenBy)
	}

	var conversations []models.Conversation
	if err := query.Order("updated_at DESC").Order("id DESC").Find(&conversations).Error; err != nil {
		return nil, err
	}

	return conversations, nil
}

func (r *conversationRepository) Hide(ctx context.Context, conversationID uint, userID string) error {
	entry := models.ConversationHide{ConversationID: conversationID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

func (r *conversationRepository) Unhide(ctx context.Context, conversationID uint, userID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationHide{}).Error
}

func (r *conversationRepository) IsHiddenBy(ctx context.Context, conversationID uint, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ConversationHide{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
