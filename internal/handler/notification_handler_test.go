package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/models"
	"github.com/noah-isme/blogsphere-api/internal/service"
)

func TestNotificationHandler_TriggerAndList(t *testing.T) {
	stack := newTestStack(t)
	post := "post-17"

	resp := stack.do(t, http.MethodPost, "/api/v1/notifications", "bob", dto.NotificationCreateRequest{
		RecipientID: "alice",
		Type:        "like",
		PostID:      &post,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var triggered dto.NotificationTriggerResponse
	decodeEnvelope(t, resp, &triggered)
	require.False(t, triggered.Suppressed)
	require.NotNil(t, triggered.Notification)
	require.Equal(t, "bob", triggered.Notification.Sender.ID)
	require.Equal(t, int64(1), triggered.UnreadCount)

	var items []dto.NotificationResponse
	body := decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications", "alice", nil), &items)
	require.True(t, body.Success)
	require.Len(t, items, 1)
	require.Equal(t, "like", items[0].Type)
	require.Equal(t, "alice", items[0].RecipientID)
	require.NotNil(t, items[0].PostID)
	require.Equal(t, post, *items[0].PostID)
	require.False(t, items[0].Read)

	decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications", "bob", nil), &items)
	require.Empty(t, items)
}

func TestNotificationHandler_SelfNotificationSuppressed(t *testing.T) {
	stack := newTestStack(t)

	resp := stack.do(t, http.MethodPost, "/api/v1/notifications", "alice", dto.NotificationCreateRequest{
		RecipientID: "alice",
		Type:        "follow",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var triggered dto.NotificationTriggerResponse
	decodeEnvelope(t, resp, &triggered)
	require.True(t, triggered.Suppressed)
	require.Nil(t, triggered.Notification)

	var count dto.UnreadCountResponse
	decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "alice", nil), &count)
	require.Zero(t, count.UnreadCount)
}

func TestNotificationHandler_TriggerRejectsUnknownType(t *testing.T) {
	stack := newTestStack(t)

	resp := stack.do(t, http.MethodPost, "/api/v1/notifications", "bob", map[string]string{
		"recipientId": "alice",
		"type":        "poke",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = stack.do(t, http.MethodPost, "/api/v1/notifications", "", dto.NotificationCreateRequest{RecipientID: "alice", Type: "like"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestNotificationHandler_MarkAllRead(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	for _, kind := range []models.NotificationType{models.NotificationLike, models.NotificationComment} {
		_, err := stack.notifications.Notify(ctx, service.NotifyRequest{RecipientID: "alice", SenderID: "bob", Type: kind})
		require.NoError(t, err)
	}

	var count dto.UnreadCountResponse
	decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "alice", nil), &count)
	require.Equal(t, int64(2), count.UnreadCount)

	var updated struct {
		Updated int64 `json:"updated"`
	}
	resp := stack.do(t, http.MethodPost, "/api/v1/notifications/read", "alice", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeEnvelope(t, resp, &updated)
	require.Equal(t, int64(2), updated.Updated)

	decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "alice", nil), &count)
	require.Zero(t, count.UnreadCount)
}

func TestNotificationHandler_ClearChatNotification(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.conversations.SendMessage(context.Background(), "bob", "alice", "ping")
	require.NoError(t, err)

	var count dto.UnreadCountResponse
	decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "alice", nil), &count)
	require.Equal(t, int64(1), count.UnreadCount)

	var cleared struct {
		Removed bool `json:"removed"`
	}
	resp := stack.do(t, http.MethodDelete, "/api/v1/notifications/chat/bob", "alice", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeEnvelope(t, resp, &cleared)
	require.True(t, cleared.Removed)

	decodeEnvelope(t, stack.do(t, http.MethodDelete, "/api/v1/notifications/chat/bob", "alice", nil), &cleared)
	require.False(t, cleared.Removed)

	decodeEnvelope(t, stack.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "alice", nil), &count)
	require.Zero(t, count.UnreadCount)
}
