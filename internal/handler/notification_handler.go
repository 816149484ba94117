package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/middleware"
	"github.com/noah-isme/blogsphere-api/internal/models"
	"github.com/noah-isme/blogsphere-api/internal/service"
	"github.com/noah-isme/blogsphere-api/internal/utils"
)

// NotificationHandler exposes the notification inbox and the trigger used by
// the content services.
type NotificationHandler struct {
	service   service.NotificationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, validator *validator.Validate, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register binds the notification routes. The router is expected to be JWT protected.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/unread-count", h.unreadCount)
	router.Post("/read", h.markAllRead)
	router.Delete("/chat/:senderId", h.clearChat)
	router.Post("/", h.trigger)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	notifications, err := h.service.List(requestContext(c), middleware.UserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.OK(c, notifications, "notifications", fiber.Map{"count": len(notifications)})
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(requestContext(c), middleware.UserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unread count", dto.UnreadCountResponse{UnreadCount: count})
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(requestContext(c), middleware.UserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notifications marked as read", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) clearChat(c *fiber.Ctx) error {
	senderID := strings.TrimSpace(c.Params("senderId"))
	if senderID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "sender id required")
	}

	removed, err := h.service.ClearChat(requestContext(c), middleware.UserID(c), senderID)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat notification cleared", fiber.Map{"removed": removed})
}

func (h *NotificationHandler) trigger(c *fiber.Ctx) error {
	var req dto.NotificationCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return writeServiceError(c, h.logger, err)
	}

	result, err := h.service.Notify(requestContext(c), service.NotifyRequest{
		RecipientID: req.RecipientID,
		SenderID:    middleware.UserID(c),
		Type:        models.NotificationType(req.Type),
		PostID:      req.PostID,
	})
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	response := dto.NotificationTriggerResponse{
		Suppressed:   result.Suppressed,
		Notification: result.Notification,
		UnreadCount:  result.UnreadCount,
	}
	if result.Suppressed {
		return utils.SendSuccess(c, "self notification suppressed", response)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "notification created", response)
}
