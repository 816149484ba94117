package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/blogsphere-api/internal/auth"
	"github.com/noah-isme/blogsphere-api/internal/utils"
)

const (
	userIDLocal = "user_id"

	// websocketBearerPrefix marks a token carried in Sec-WebSocket-Protocol,
	// for browser clients that cannot set an Authorization header.
	websocketBearerPrefix = "bearer."
)

// JWTProtected returns a middleware that validates JWT bearer tokens.
func JWTProtected(verifier *auth.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		tokenString, ok := bearerToken(authorization)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		userID, err := verifier.Verify(tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// WebsocketAuth authenticates a websocket handshake before the upgrade. The
// token may come from the Authorization header, the token query parameter or
// a "bearer.<token>" websocket subprotocol.
func WebsocketAuth(verifier *auth.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := HandshakeToken(c)
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication token missing")
		}

		userID, err := verifier.Verify(tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// HandshakeToken extracts the credential from a websocket handshake request.
func HandshakeToken(c *fiber.Ctx) string {
	if tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
		return tokenString
	}

	if tokenString := strings.TrimSpace(c.Query("token")); tokenString != "" {
		return tokenString
	}

	for _, protocol := range strings.Split(c.Get("Sec-WebSocket-Protocol"), ",") {
		protocol = strings.TrimSpace(protocol)
		if strings.HasPrefix(strings.ToLower(protocol), websocketBearerPrefix) {
			return strings.TrimSpace(protocol[len(websocketBearerPrefix):])
		}
	}

	return ""
}

// UserID returns the authenticated identity bound by JWTProtected or WebsocketAuth.
func UserID(c *fiber.Ctx) string {
	if value, ok := c.Locals(userIDLocal).(string); ok {
		return value
	}
	return ""
}

func bearerToken(authorization string) (string, bool) {
	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	return tokenString, tokenString != ""
}
