package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	EventsSubject         string
	JWTSecret             string
	ChatEditWindow        time.Duration
	ChatSendBuffer        int
	ChatPingInterval      time.Duration
	NotificationUnreadTTL time.Duration
	NotificationListLimit int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BLOGSPHERE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Blogsphere API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5000")
	v.SetDefault("events.subject", "blogsphere.chat.events")
	v.SetDefault("chat.edit_window", "15m")
	v.SetDefault("chat.send_buffer", 64)
	v.SetDefault("chat.ping_interval", "30s")
	v.SetDefault("notifications.unread_ttl", "1m")
	v.SetDefault("notifications.list_limit", 30)

	editWindow, err := parseDuration(v, "chat.edit_window", 15*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid chat edit window: %w", err)
	}

	pingInterval, err := parseDuration(v, "chat.ping_interval", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid chat ping interval: %w", err)
	}

	unreadTTL, err := parseDuration(v, "notifications.unread_ttl", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid notification unread ttl: %w", err)
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		EventsSubject:         v.GetString("events.subject"),
		JWTSecret:             v.GetString("jwt.secret"),
		ChatEditWindow:        editWindow,
		ChatSendBuffer:        v.GetInt("chat.send_buffer"),
		ChatPingInterval:      pingInterval,
		NotificationUnreadTTL: unreadTTL,
		NotificationListLimit: v.GetInt("notifications.list_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ChatSendBuffer <= 0 {
		cfg.ChatSendBuffer = 64
	}

	if cfg.NotificationListLimit <= 0 {
		cfg.NotificationListLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}
