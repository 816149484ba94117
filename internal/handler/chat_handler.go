package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/blogsphere-api/internal/auth"
	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/middleware"
	"github.com/noah-isme/blogsphere-api/internal/service"
	"github.com/noah-isme/blogsphere-api/internal/utils"
)

// ChatSubprotocol is echoed back to clients that carry their token as a
// "bearer.<token>" subprotocol; browsers require one offered protocol to be selected.
const ChatSubprotocol = "chat"

// ChatHandler wires conversation endpoints and the websocket upgrade.
type ChatHandler struct {
	conversations service.ConversationService
	chat          service.ChatService
	verifier      *auth.TokenVerifier
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(conversations service.ConversationService, chat service.ChatService, verifier *auth.TokenVerifier, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		chat:          chat,
		verifier:      verifier,
		validator:     validator,
		logger:        logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group. Each route
// authenticates on its own because the websocket accepts tokens outside the
// Authorization header.
func (h *ChatHandler) Register(router fiber.Router) {
	protected := middleware.JWTProtected(h.verifier)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", middleware.WebsocketAuth(h.verifier), websocket.New(h.handleConnection, websocket.Config{
		Subprotocols: []string{ChatSubprotocol},
	}))

	router.Get("/online", protected, h.online)
	router.Get("/conversations", protected, h.list(false))
	router.Get("/conversations/hidden", protected, h.list(true))
	router.Post("/conversations", protected, middleware.RateLimit("chat_conversations", 30, time.Minute), h.create)
	router.Get("/conversations/:id/messages", protected, middleware.RateLimit("chat_history", 60, time.Minute), h.messages)
	router.Post("/conversations/:id/hide", protected, h.hide)
	router.Post("/conversations/:id/unhide", protected, h.unhide)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	h.logger.Info().Str("user_id", userID).Str("correlation_id", correlation).Msg("chat websocket connected")
	h.chat.ServeConnection(conn, service.ChatConnectionOptions{
		UserID:        userID,
		CorrelationID: correlation,
		Context:       baseCtx,
	})
	h.logger.Info().Str("user_id", userID).Str("correlation_id", correlation).Msg("chat websocket disconnected")
}

func (h *ChatHandler) online(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "online users", h.chat.OnlineUsers())
}

func (h *ChatHandler) list(hidden bool) fiber.Handler {
	message := "conversations"
	if hidden {
		message = "hidden conversations"
	}

	return func(c *fiber.Ctx) error {
		conversations, err := h.conversations.List(requestContext(c), middleware.UserID(c), hidden)
		if err != nil {
			return writeServiceError(c, h.logger, err)
		}
		return utils.OK(c, conversations, message, fiber.Map{"count": len(conversations)})
	}
}

func (h *ChatHandler) create(c *fiber.Ctx) error {
	var req dto.ConversationCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return writeServiceError(c, h.logger, err)
	}

	conversation, created, err := h.conversations.FindOrCreate(requestContext(c), middleware.UserID(c), req.ReceiverID)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "conversation created", conversation)
	}
	return utils.SendSuccess(c, "conversation found", conversation)
}

func (h *ChatHandler) messages(c *fiber.Ctx) error {
	conversationID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	messages, err := h.conversations.Messages(requestContext(c), conversationID, middleware.UserID(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.OK(c, messages, "messages", fiber.Map{"count": len(messages)})
}

func (h *ChatHandler) hide(c *fiber.Ctx) error {
	conversationID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.conversations.Hide(requestContext(c), conversationID, middleware.UserID(c)); err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "conversation hidden", fiber.Map{"conversationId": conversationID, "hidden": true})
}

func (h *ChatHandler) unhide(c *fiber.Ctx) error {
	conversationID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.conversations.Unhide(requestContext(c), conversationID, middleware.UserID(c)); err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "conversation unhidden", fiber.Map{"conversationId": conversationID, "hidden": false})
}
