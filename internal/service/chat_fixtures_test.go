package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/blogsphere-api/internal/events"
	"github.com/noah-isme/blogsphere-api/internal/realtime"
	"github.com/noah-isme/blogsphere-api/internal/repository"
	"github.com/noah-isme/blogsphere-api/internal/testutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChatEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

// chatFixture wires the chat stack against SQLite with a controllable clock.
type chatFixture struct {
	db            *gorm.DB
	clock         *testClock
	presence      *realtime.Presence
	rooms         *realtime.Rooms
	publisher     *recordingPublisher
	notifications NotificationService
	conversations ConversationService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	testutil.SeedUsers(t, db, "alice", "bob", "carol")

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()
	presence := realtime.NewPresence()
	users := repository.NewUserRepository(db)
	clock := newTestClock()
	publisher := &recordingPublisher{}

	notifications := NewNotificationService(
		repository.NewNotificationRepository(db),
		users,
		presence,
		nil,
		validate,
		logger,
		NotificationServiceConfig{},
	)

	conversations := NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		users,
		notifications,
		publisher,
		validate,
		logger,
		15*time.Minute,
	)
	if concrete, ok := conversations.(*conversationService); ok {
		concrete.now = clock.Now
	}

	return &chatFixture{
		db:            db,
		clock:         clock,
		presence:      presence,
		rooms:         realtime.NewRooms(),
		publisher:     publisher,
		notifications: notifications,
		conversations: conversations,
	}
}
