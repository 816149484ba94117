package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/blogsphere-api/internal/auth"
	"github.com/noah-isme/blogsphere-api/internal/config"
	"github.com/noah-isme/blogsphere-api/internal/database"
	"github.com/noah-isme/blogsphere-api/internal/events"
	"github.com/noah-isme/blogsphere-api/internal/handler"
	"github.com/noah-isme/blogsphere-api/internal/middleware"
	"github.com/noah-isme/blogsphere-api/internal/realtime"
	"github.com/noah-isme/blogsphere-api/internal/repository"
	"github.com/noah-isme/blogsphere-api/internal/router"
	"github.com/noah-isme/blogsphere-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	// Redis and NATS are optional: without them unread counts are read from
	// the database and chat events are not mirrored.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, unread counts will not be cached")
			redisClient = nil
		} else {
			defer redisClient.Close()
			probes["redis"] = func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, chat events will not be published")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	presence := realtime.NewPresence()
	rooms := realtime.NewRooms()

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, userRepo, presence, redisClient, validate, logger, service.NotificationServiceConfig{
		UnreadTTL: cfg.NotificationUnreadTTL,
		ListLimit: cfg.NotificationListLimit,
	})
	conversationService := service.NewConversationService(
		conversationRepo,
		messageRepo,
		userRepo,
		notificationService,
		events.NewNATSPublisher(natsConn, cfg.EventsSubject, logger),
		validate,
		logger,
		cfg.ChatEditWindow,
	)
	chatService := service.NewChatService(conversationService, presence, rooms, validate, logger, service.ChatServiceConfig{
		SendBuffer:   cfg.ChatSendBuffer,
		PingInterval: cfg.ChatPingInterval,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ChatHandler:         handler.NewChatHandler(conversationService, chatService, verifier, validate, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, validate, logger),
		Verifier:            verifier,
		HealthProbes:        probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
