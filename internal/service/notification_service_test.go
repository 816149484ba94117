package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/blogsphere-api/internal/dto"
	"github.com/noah-isme/blogsphere-api/internal/models"
	"github.com/noah-isme/blogsphere-api/internal/realtime"
	"github.com/noah-isme/blogsphere-api/internal/repository"
	"github.com/noah-isme/blogsphere-api/internal/testutil"
)

type capturingConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []realtime.Event
}

func (c *capturingConn) ID() string     { return c.id }
func (c *capturingConn) UserID() string { return c.userID }

func (c *capturingConn) Deliver(event realtime.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return true
}

func (c *capturingConn) unreadCounts() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make([]int64, 0, len(c.events))
	for _, event := range c.events {
		if payload, ok := event.Data.(dto.UnreadCountResponse); ok && event.Name == realtime.EventNewNotification {
			counts = append(counts, payload.UnreadCount)
		}
	}
	return counts
}

func setupNotificationService(t *testing.T, cache *redis.Client) (*gorm.DB, NotificationService, *realtime.Presence) {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	testutil.SeedUsers(t, db, "alice", "bob")
	presence := realtime.NewPresence()

	service := NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		presence,
		cache,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
		NotificationServiceConfig{UnreadTTL: time.Minute},
	)
	return db, service, presence
}

func TestNotificationServiceSuppressesSelfNotifications(t *testing.T) {
	db, service, _ := setupNotificationService(t, nil)

	for _, notificationType := range models.NotificationTypes {
		result, err := service.Notify(context.Background(), NotifyRequest{RecipientID: "alice", SenderID: "alice", Type: notificationType})
		require.NoError(t, err)
		require.True(t, result.Suppressed, string(notificationType))
	}

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestNotificationServiceRejectsUnknownType(t *testing.T) {
	_, service, _ := setupNotificationService(t, nil)

	_, err := service.Notify(context.Background(), NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: "poke"})
	require.ErrorIs(t, err, ErrInvalidNotificationType)
}

func TestNotificationServiceChatCollapsesAndPushesCount(t *testing.T) {
	db, service, presence := setupNotificationService(t, nil)
	bob := &capturingConn{id: "conn-bob", userID: "bob"}
	presence.Register("bob", bob)

	ctx := context.Background()
	first, err := service.Notify(ctx, NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: models.NotificationChat})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.UnreadCount)
	require.Equal(t, "alice", first.Notification.Sender.Username)

	second, err := service.Notify(ctx, NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: models.NotificationChat})
	require.NoError(t, err)
	require.Equal(t, int64(1), second.UnreadCount)
	require.Equal(t, first.Notification.ID, second.Notification.ID)

	var rows []models.Notification
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Read)

	require.Equal(t, []int64{1, 1}, bob.unreadCounts())
}

func TestNotificationServiceNonChatTypesAlwaysInsert(t *testing.T) {
	_, service, _ := setupNotificationService(t, nil)
	ctx := context.Background()

	postID := "post-9"
	for i := 0; i < 2; i++ {
		_, err := service.Notify(ctx, NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: models.NotificationLike, PostID: &postID})
		require.NoError(t, err)
	}

	items, err := service.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "like", items[0].Type)
	require.Equal(t, "post-9", *items[0].PostID)
	require.Equal(t, "alice", items[0].Sender.ID)
}

func TestNotificationServiceUnreadCountUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db, service, presence := setupNotificationService(t, client)
	bob := &capturingConn{id: "conn-bob", userID: "bob"}
	presence.Register("bob", bob)
	ctx := context.Background()

	_, err := service.Notify(ctx, NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: models.NotificationFollow})
	require.NoError(t, err)

	cached, err := mr.Get(unreadCacheKey("bob"))
	require.NoError(t, err)
	require.Equal(t, "1", cached)

	// A row written behind the service's back stays invisible until invalidation.
	require.NoError(t, db.Create(&models.Notification{RecipientID: "bob", SenderID: "alice", Type: models.NotificationReply}).Error)
	count, err := service.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	updated, err := service.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)
	require.False(t, mr.Exists(unreadCacheKey("bob")))

	count, err = service.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, count)

	require.Equal(t, []int64{1, 0}, bob.unreadCounts())
}

func TestNotificationServiceFallsBackWhenCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	_, service, _ := setupNotificationService(t, client)
	mr.Close()

	result, err := service.Notify(context.Background(), NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: models.NotificationComment})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.UnreadCount)
}

func TestNotificationServiceClearChat(t *testing.T) {
	_, service, _ := setupNotificationService(t, nil)
	ctx := context.Background()

	_, err := service.Notify(ctx, NotifyRequest{RecipientID: "bob", SenderID: "alice", Type: models.NotificationChat})
	require.NoError(t, err)

	removed, err := service.ClearChat(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = service.ClearChat(ctx, "bob", "alice")
	require.NoError(t, err)
	require.False(t, removed)

	count, err := service.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, count)
}
