package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/events"
	"github.com/noah-isme/blogsphere-api/internal/models"
	"github.com/noah-isme/blogsphere-api/internal/observability"
	"github.com/noah-isme/blogsphere-api/internal/repository"
)

const defaultEditWindow = 15 * time.Minute

// Notifier is the subset of the notification service used when a message is sent.
type Notifier interface {
	Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error)
}

// SendResult carries the stored message and the conversation it moved.
type SendResult struct {
	Message      dto.MessageResponse
	Conversation dto.ConversationResponse
	Participants []string
	Created      bool
}

// MutationResult carries an edited or deleted message and the refreshed conversation.
type MutationResult struct {
	Message      dto.MessageResponse
	Conversation dto.ConversationResponse
	Participants []string
}

// ConversationService owns conversations and the messages exchanged in them.
type ConversationService interface {
	FindOrCreate(ctx context.Context, userID, otherID string) (dto.ConversationResponse, bool, error)
	List(ctx context.Context, userID string, hidden bool) ([]dto.ConversationResponse, error)
	Hide(ctx context.Context, conversationID uint, userID string) error
	Unhide(ctx context.Context, conversationID uint, userID string) error
	Messages(ctx context.Context, conversationID uint, userID string) ([]dto.MessageResponse, error)
	SendMessage(ctx context.Context, senderID, receiverID, content string) (SendResult, error)
	EditMessage(ctx context.Context, userID string, messageID uint, newContent string) (MutationResult, error)
	DeleteMessage(ctx context.Context, userID string, messageID uint) (MutationResult, error)
	Participants(ctx context.Context, conversationID uint) ([]string, error)
	IsParticipant(ctx context.Context, conversationID uint, userID string) (bool, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	notifier      Notifier
	publisher     events.Publisher
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	editWindow    time.Duration
	now           func() time.Time
}

// NewConversationService constructs the conversation service. publisher may be nil.
func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	notifier Notifier,
	publisher events.Publisher,
	validate *validator.Validate,
	logger zerolog.Logger,
	editWindow time.Duration,
) ConversationService {
	if editWindow <= 0 {
		editWindow = defaultEditWindow
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &conversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		notifier:      notifier,
		publisher:     publisher,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/blogsphere-api/internal/service/conversation"),
		editWindow:    editWindow,
		now:           time.Now,
	}
}

func (s *conversationService) FindOrCreate(ctx context.Context, userID, otherID string) (dto.ConversationResponse, bool, error) {
	userID = strings.TrimSpace(userID)
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return dto.ConversationResponse{}, false, ErrReceiverRequired
	}
	if userID == otherID {
		return dto.ConversationResponse{}, false, ErrSelfConversation
	}

	conversation, created, err := s.conversations.FindOrCreate(ctx, userID, otherID)
	if err != nil {
		return dto.ConversationResponse{}, false, err
	}

	response, err := s.buildConversation(ctx, conversation, nil, userID)
	if err != nil {
		return dto.ConversationResponse{}, false, err
	}
	return response, created, nil
}

func (s *conversationService) List(ctx context.Context, userID string, hidden bool) ([]dto.ConversationResponse, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID, hidden)
	if err != nil {
		return nil, err
	}

	lastIDs := make([]uint, 0, len(conversations))
	userIDs := make([]string, 0, len(conversations)*2)
	for _, conversation := range conversations {
		userIDs = append(userIDs, conversation.Participants()...)
		if conversation.LastMessageID != nil {
			lastIDs = append(lastIDs, *conversation.LastMessageID)
		}
	}

	lastMessages, err := s.messages.FindByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Message, len(lastMessages))
	for _, message := range lastMessages {
		byID[message.ID] = message
		userIDs = append(userIDs, message.SenderID)
	}

	users := loadUserSummaries(ctx, s.users, userIDs, s.logger)

	responses := make([]dto.ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		var last *models.Message
		if conversation.LastMessageID != nil {
			if message, ok := byID[*conversation.LastMessageID]; ok {
				last = &message
			}
		}
		responses = append(responses, dto.NewConversationResponse(conversation, last, users, userID))
	}
	return responses, nil
}

func (s *conversationService) Hide(ctx context.Context, conversationID uint, userID string) error {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.conversations.Hide(ctx, conversationID, userID)
}

func (s *conversationService) Unhide(ctx context.Context, conversationID uint, userID string) error {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.conversations.Unhide(ctx, conversationID, userID)
}

func (s *conversationService) Messages(ctx context.Context, conversationID uint, userID string) ([]dto.MessageResponse, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	senders := make([]string, 0, len(messages))
	for _, message := range messages {
		senders = append(senders, message.SenderID)
	}
	users := loadUserSummaries(ctx, s.users, senders, s.logger)

	responses := make([]dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, dto.NewMessageResponse(message, users))
	}
	return responses, nil
}

func (s *conversationService) SendMessage(ctx context.Context, senderID, receiverID, content string) (SendResult, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return SendResult{}, ErrReceiverRequired
	}
	if senderID == receiverID {
		return SendResult{}, ErrSelfConversation
	}

	clean, err := s.cleanContent(content)
	if err != nil {
		return SendResult{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(
		attribute.String("chat.sender_id", senderID),
		attribute.String("chat.receiver_id", receiverID),
	))
	defer span.End()

	conversation, created, err := s.conversations.FindOrCreate(spanCtx, senderID, receiverID)
	if err != nil {
		span.RecordError(err)
		return SendResult{}, err
	}
	span.SetAttributes(attribute.Int64("chat.conversation_id", int64(conversation.ID)))

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		Content:        clean,
		ReadBy:         datatypes.JSONSlice[string]{},
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.CreateInConversation(spanCtx, &message); err != nil {
		span.RecordError(err)
		return SendResult{}, err
	}
	observability.ChatMessagesSent().Inc()

	conversation.LastMessageID = &message.ID
	conversation.UpdatedAt = message.CreatedAt

	if s.notifier != nil {
		if _, err := s.notifier.Notify(spanCtx, NotifyRequest{
			RecipientID: receiverID,
			SenderID:    senderID,
			Type:        models.NotificationChat,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("message_id", message.ID).Msg("failed to record chat notification")
		}
	}

	s.publish(spanCtx, events.TypeMessageCreated, conversation, message.ID, senderID)

	response, err := s.buildConversation(spanCtx, conversation, &message, "")
	if err != nil {
		return SendResult{}, err
	}

	return SendResult{
		Message:      *response.LastMessage,
		Conversation: response,
		Participants: conversation.Participants(),
		Created:      created,
	}, nil
}

func (s *conversationService) EditMessage(ctx context.Context, userID string, messageID uint, newContent string) (MutationResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "chat.edit_message", trace.WithAttributes(
		attribute.String("chat.user_id", userID),
		attribute.Int64("chat.message_id", int64(messageID)),
	))
	defer span.End()

	message, err := s.mutableMessage(spanCtx, userID, messageID)
	if err != nil {
		return MutationResult{}, err
	}

	clean, err := s.cleanContent(newContent)
	if err != nil {
		return MutationResult{}, err
	}

	message.Content = clean
	message.IsEdited = true
	if err := s.messages.Update(spanCtx, &message); err != nil {
		span.RecordError(err)
		return MutationResult{}, err
	}

	conversation, err := s.conversations.FindByID(spanCtx, message.ConversationID)
	if err != nil {
		span.RecordError(err)
		return MutationResult{}, mapConversationError(err)
	}

	s.publish(spanCtx, events.TypeMessageEdited, conversation, message.ID, userID)
	return s.mutationResult(spanCtx, conversation, message)
}

func (s *conversationService) DeleteMessage(ctx context.Context, userID string, messageID uint) (MutationResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "chat.delete_message", trace.WithAttributes(
		attribute.String("chat.user_id", userID),
		attribute.Int64("chat.message_id", int64(messageID)),
	))
	defer span.End()

	message, err := s.mutableMessage(spanCtx, userID, messageID)
	if err != nil {
		return MutationResult{}, err
	}

	message.Content = models.MessageDeletedPlaceholder
	message.IsDeleted = true
	conversation, err := s.messages.SoftDelete(spanCtx, &message)
	if err != nil {
		span.RecordError(err)
		return MutationResult{}, mapConversationError(err)
	}

	s.publish(spanCtx, events.TypeMessageDeleted, conversation, message.ID, userID)
	return s.mutationResult(spanCtx, conversation, message)
}

func (s *conversationService) Participants(ctx context.Context, conversationID uint) ([]string, error) {
	conversation, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, mapConversationError(err)
	}
	return conversation.Participants(), nil
}

func (s *conversationService) IsParticipant(ctx context.Context, conversationID uint, userID string) (bool, error) {
	_, err := s.participantConversation(ctx, conversationID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotParticipant):
		return false, nil
	default:
		return false, err
	}
}

// mutableMessage loads a message the caller may still edit or delete.
func (s *conversationService) mutableMessage(ctx context.Context, userID string, messageID uint) (models.Message, error) {
	message, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}

	if message.SenderID != userID {
		return models.Message{}, ErrNotMessageSender
	}
	if message.IsDeleted {
		return models.Message{}, ErrMessageDeleted
	}
	if !message.WithinWindow(s.now(), s.editWindow) {
		return models.Message{}, ErrEditWindowExpired
	}
	return message, nil
}

func (s *conversationService) mutationResult(ctx context.Context, conversation models.Conversation, message models.Message) (MutationResult, error) {
	var last *models.Message
	if conversation.LastMessageID != nil {
		if *conversation.LastMessageID == message.ID {
			last = &message
		} else {
			stored, err := s.messages.FindByID(ctx, *conversation.LastMessageID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return MutationResult{}, err
			}
			if err == nil {
				last = &stored
			}
		}
	}

	userIDs := append(conversation.Participants(), message.SenderID)
	if last != nil {
		userIDs = append(userIDs, last.SenderID)
	}
	users := loadUserSummaries(ctx, s.users, userIDs, s.logger)

	return MutationResult{
		Message:      dto.NewMessageResponse(message, users),
		Conversation: dto.NewConversationResponse(conversation, last, users, ""),
		Participants: conversation.Participants(),
	}, nil
}

func (s *conversationService) participantConversation(ctx context.Context, conversationID uint, userID string) (models.Conversation, error) {
	conversation, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, mapConversationError(err)
	}
	if !conversation.HasParticipant(userID) {
		return models.Conversation{}, ErrNotParticipant
	}
	return conversation, nil
}

// buildConversation populates participants and, when known, the last message.
func (s *conversationService) buildConversation(ctx context.Context, conversation models.Conversation, last *models.Message, viewerID string) (dto.ConversationResponse, error) {
	if last == nil && conversation.LastMessageID != nil {
		stored, err := s.messages.FindByID(ctx, *conversation.LastMessageID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConversationResponse{}, err
		}
		if err == nil {
			last = &stored
		}
	}

	userIDs := conversation.Participants()
	if last != nil {
		userIDs = append(userIDs, last.SenderID)
	}
	users := loadUserSummaries(ctx, s.users, userIDs, s.logger)
	return dto.NewConversationResponse(conversation, last, users, viewerID), nil
}

// cleanContent validates message text. Content is plain text and is stored
// exactly as sent; clients render it as text, never as markup.
func (s *conversationService) cleanContent(content string) (string, error) {
	if !utf8.ValidString(content) || strings.TrimSpace(content) == "" {
		return "", ErrInvalidMessageContent
	}
	if err := s.validator.Var(content, "max=4000"); err != nil {
		return "", ErrInvalidMessageContent
	}
	return content, nil
}

func (s *conversationService) publish(ctx context.Context, eventType string, conversation models.Conversation, messageID uint, actorID string) {
	err := s.publisher.Publish(ctx, events.ChatEvent{
		Type:           eventType,
		ConversationID: conversation.ID,
		MessageID:      messageID,
		ActorID:        actorID,
		Participants:   conversation.Participants(),
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("failed to publish chat event")
	}
}

func mapConversationError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// loadUserSummaries resolves profiles for ids. Lookup failures degrade to bare
// ids rather than failing the caller.
func loadUserSummaries(ctx context.Context, repo repository.UserRepository, ids []string, logger zerolog.Logger) map[string]dto.UserSummary {
	summaries := make(map[string]dto.UserSummary, len(ids))
	if repo == nil || len(ids) == 0 {
		return summaries
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := repo.FindByIDs(ctx, unique)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load user profiles")
		return summaries
	}
	for _, user := range users {
		summaries[user.ID] = dto.NewUserSummary(user)
	}
	return summaries
}
