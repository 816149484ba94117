package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/models"
	"github.com/noah-isme/blogsphere-api/internal/observability"
	"github.com/noah-isme/blogsphere-api/internal/realtime"
	"github.com/noah-isme/blogsphere-api/internal/repository"
)

// PresenceLookup resolves a user's live connection.
type PresenceLookup interface {
	Lookup(userID string) (realtime.Conn, bool)
}

// NotifyRequest describes a notification to record for RecipientID.
type NotifyRequest struct {
	RecipientID string                  `validate:"required,max=64"`
	SenderID    string                  `validate:"required,max=64"`
	Type        models.NotificationType `validate:"required,oneof=like comment reply follow chat"`
	PostID      *string                 `validate:"omitempty,max=64"`
}

// NotifyResult reports what Notify stored. Suppressed is set for self notifications.
type NotifyResult struct {
	Suppressed   bool
	Notification *dto.NotificationResponse
	UnreadCount  int64
}

// NotificationService records notifications and pushes unread counts to online recipients.
type NotificationService interface {
	Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error)
	List(ctx context.Context, recipientID string) ([]dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	ClearChat(ctx context.Context, recipientID, senderID string) (bool, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	users     repository.UserRepository
	presence  PresenceLookup
	cache     *redis.Client
	ttl       time.Duration
	limit     int
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NotificationServiceConfig tunes caching and listing.
type NotificationServiceConfig struct {
	UnreadTTL time.Duration
	ListLimit int
}

// NewNotificationService constructs a notification service. cache and presence may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	presence PresenceLookup,
	cache *redis.Client,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg NotificationServiceConfig,
) NotificationService {
	if cfg.UnreadTTL <= 0 {
		cfg.UnreadTTL = time.Minute
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 30
	}

	return &notificationService{
		repo:      repo,
		users:     users,
		presence:  presence,
		cache:     cache,
		ttl:       cfg.UnreadTTL,
		limit:     cfg.ListLimit,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/blogsphere-api/internal/service/notification"),
	}
}

func (s *notificationService) Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error) {
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	req.SenderID = strings.TrimSpace(req.SenderID)

	if req.RecipientID != "" && req.RecipientID == req.SenderID {
		return NotifyResult{Suppressed: true}, nil
	}

	if !req.Type.Valid() {
		return NotifyResult{}, ErrInvalidNotificationType
	}
	if err := s.validator.Struct(req); err != nil {
		return NotifyResult{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.notify", trace.WithAttributes(
		attribute.String("notification.recipient_id", req.RecipientID),
		attribute.String("notification.type", string(req.Type)),
	))
	defer span.End()

	var stored models.Notification
	if req.Type == models.NotificationChat {
		upserted, err := s.repo.UpsertChat(spanCtx, req.RecipientID, req.SenderID)
		if err != nil {
			span.RecordError(err)
			return NotifyResult{}, err
		}
		stored = upserted
	} else {
		stored = models.Notification{
			RecipientID: req.RecipientID,
			SenderID:    req.SenderID,
			Type:        req.Type,
			PostID:      req.PostID,
		}
		if err := s.repo.Create(spanCtx, &stored); err != nil {
			span.RecordError(err)
			return NotifyResult{}, err
		}
	}
	observability.NotificationsCreated().WithLabelValues(string(req.Type)).Inc()

	s.invalidate(spanCtx, req.RecipientID)
	count, err := s.UnreadCount(spanCtx, req.RecipientID)
	if err != nil {
		span.RecordError(err)
		return NotifyResult{}, err
	}
	s.push(req.RecipientID, count)

	response := dto.NewNotificationResponse(stored, s.userSummaries(spanCtx, []string{req.SenderID}))
	return NotifyResult{Notification: &response, UnreadCount: count}, nil
}

func (s *notificationService) List(ctx context.Context, recipientID string) ([]dto.NotificationResponse, error) {
	items, err := s.repo.ListByRecipient(ctx, recipientID, s.limit)
	if err != nil {
		return nil, err
	}

	senders := make([]string, 0, len(items))
	for _, item := range items {
		senders = append(senders, item.SenderID)
	}
	users := s.userSummaries(ctx, senders)

	responses := make([]dto.NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewNotificationResponse(item, users))
	}
	return responses, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, recipientID)
	s.push(recipientID, 0)
	return updated, nil
}

func (s *notificationService) ClearChat(ctx context.Context, recipientID, senderID string) (bool, error) {
	removed, err := s.repo.DeleteChatFrom(ctx, recipientID, senderID)
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}

	s.invalidate(ctx, recipientID)
	if count, err := s.UnreadCount(ctx, recipientID); err == nil {
		s.push(recipientID, count)
	}
	return true, nil
}

// UnreadCount reads through the Redis cache. Cache failures fall back to the store.
func (s *notificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	key := unreadCacheKey(recipientID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				observability.NotificationCache().WithLabelValues("hit").Inc()
				return count, nil
			}
		case errors.Is(err, redis.Nil):
		default:
			s.logger.Warn().Err(err).Str("recipient_id", recipientID).Msg("failed to read unread count cache")
		}
	}

	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	observability.NotificationCache().WithLabelValues("miss").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.ttl).Err(); err != nil {
			s.logger.Warn().Err(err).Str("recipient_id", recipientID).Msg("failed to cache unread count")
		}
	}
	return count, nil
}

func (s *notificationService) invalidate(ctx context.Context, recipientID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadCacheKey(recipientID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("recipient_id", recipientID).Msg("failed to invalidate unread count cache")
	}
}

func (s *notificationService) push(recipientID string, count int64) {
	if s.presence == nil {
		return
	}
	conn, ok := s.presence.Lookup(recipientID)
	if !ok {
		return
	}
	if !conn.Deliver(realtime.NewEvent(realtime.EventNewNotification, dto.UnreadCountResponse{UnreadCount: count})) {
		observability.ChatDroppedEvents().WithLabelValues(realtime.EventNewNotification).Inc()
		s.logger.Warn().Str("recipient_id", recipientID).Msg("dropping notification event for slow client")
	}
}

func (s *notificationService) userSummaries(ctx context.Context, ids []string) map[string]dto.UserSummary {
	return loadUserSummaries(ctx, s.users, ids, s.logger)
}

func unreadCacheKey(recipientID string) string {
	return fmt.Sprintf("notifications:unread:v1:%s", recipientID)
}
