package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/blogsphere-api/internal/auth"
	"github.com/noah-isme/blogsphere-api/internal/config"
	"github.com/noah-isme/blogsphere-api/internal/events"
	"github.com/noah-isme/blogsphere-api/internal/handler"
	"github.com/noah-isme/blogsphere-api/internal/middleware"
	"github.com/noah-isme/blogsphere-api/internal/realtime"
	"github.com/noah-isme/blogsphere-api/internal/repository"
	"github.com/noah-isme/blogsphere-api/internal/router"
	"github.com/noah-isme/blogsphere-api/internal/service"
	"github.com/noah-isme/blogsphere-api/internal/testutil"
)

const testSecret = "handler-test-secret"

// testStack is the full HTTP surface over an in-memory database.
type testStack struct {
	app           *fiber.App
	db            *gorm.DB
	verifier      *auth.TokenVerifier
	presence      *realtime.Presence
	conversations service.ConversationService
	notifications service.NotificationService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	testutil.SeedUsers(t, db, "alice", "bob", "carol")

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	presence := realtime.NewPresence()
	users := repository.NewUserRepository(db)

	notifications := service.NewNotificationService(
		repository.NewNotificationRepository(db),
		users,
		presence,
		nil,
		validate,
		logger,
		service.NotificationServiceConfig{},
	)
	conversations := service.NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		users,
		notifications,
		events.NopPublisher{},
		validate,
		logger,
		15*time.Minute,
	)
	chat := service.NewChatService(conversations, presence, realtime.NewRooms(), validate, logger, service.ChatServiceConfig{PingInterval: time.Minute})

	verifier := auth.NewTokenVerifier(testSecret)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(middleware.CorrelationID())
	router.Register(app, config.Config{AppName: "Blogsphere API", AppEnv: "test"}, router.Dependencies{
		ChatHandler:         handler.NewChatHandler(conversations, chat, verifier, validate, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, validate, logger),
		Verifier:            verifier,
	})

	return &testStack{
		app:           app,
		db:            db,
		verifier:      verifier,
		presence:      presence,
		conversations: conversations,
		notifications: notifications,
	}
}

func (s *testStack) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// do performs an authenticated request as userID; an empty userID sends no credentials.
func (s *testStack) do(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, userID))
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Message string          `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	var body envelope
	decodeResponse(t, resp, &body)
	if data != nil {
		require.NoError(t, json.Unmarshal(body.Data, data))
	}
	return body
}
