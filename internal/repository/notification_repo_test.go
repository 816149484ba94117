package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/blogsphere-api/internal/models"
	"github.com/noah-isme/blogsphere-api/internal/testutil"
)

func TestNotificationRepositoryUpsertChatKeepsOneUnreadRow(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	first, err := repo.UpsertChat(ctx, "bob", "alice")
	require.NoError(t, err)
	require.False(t, first.Read)
	require.Equal(t, 0, first.Revision)

	second, err := repo.UpsertChat(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, second.Revision)

	unread, err := repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), unread)

	marked, err := repo.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	third, err := repo.UpsertChat(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, third.ID)
	require.False(t, third.Read, "a new message flips the row back to unread")

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestNotificationRepositoryNonChatAlwaysInserts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	postID := "post-1"
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{RecipientID: "bob", SenderID: "alice", Type: models.NotificationLike, PostID: &postID}))
	}

	unread, err := repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)
}

func TestNotificationRepositoryListByRecipientNewestFirstWithLimit(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			RecipientID: "bob",
			SenderID:    "alice",
			Type:        models.NotificationFollow,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{RecipientID: "carol", SenderID: "alice", Type: models.NotificationFollow}))

	items, err := repo.ListByRecipient(ctx, "bob", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.True(t, items[0].CreatedAt.After(items[1].CreatedAt))
	for _, item := range items {
		require.Equal(t, "bob", item.RecipientID)
	}
}

func TestNotificationRepositoryDeleteChatFromOnlyRemovesThatSender(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertChat(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = repo.UpsertChat(ctx, "bob", "carol")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, &models.Notification{RecipientID: "bob", SenderID: "alice", Type: models.NotificationFollow}))

	removed, err := repo.DeleteChatFrom(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	unread, err := repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)
}

func TestNotificationRepositoryUpsertChatKeepsColonIdentitiesApart(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	toAB, err := repo.UpsertChat(ctx, "a:b", "c")
	require.NoError(t, err)
	toA, err := repo.UpsertChat(ctx, "a", "b:c")
	require.NoError(t, err)
	require.NotEqual(t, toAB.ID, toA.ID)
	require.Equal(t, "a", toA.RecipientID)
	require.Equal(t, "b:c", toA.SenderID)
	require.Equal(t, 0, toA.Revision)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	unread, err := repo.CountUnread(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(1), unread)

	removed, err := repo.DeleteChatFrom(ctx, "a", "b:c")
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	unread, err = repo.CountUnread(ctx, "a:b")
	require.NoError(t, err)
	require.Equal(t, int64(1), unread, "the other pair's row survives")
}
