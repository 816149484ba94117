package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/blogsphere-api/internal/auth"
	"github.com/noah-isme/blogsphere-api/internal/config"
	"github.com/noah-isme/blogsphere-api/internal/handler"
	"github.com/noah-isme/blogsphere-api/internal/middleware"
	"github.com/noah-isme/blogsphere-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	Verifier            *auth.TokenVerifier
	HealthProbes        map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Chat routes authenticate per route; the websocket reads its token from the handshake.
	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat"))
	}

	if deps.NotificationHandler != nil && deps.Verifier != nil {
		notifications := api.Group("/notifications", middleware.JWTProtected(deps.Verifier))
		deps.NotificationHandler.Register(notifications)
	}
}
