package router

import (
	"context"

	"direct_message_service/internal/chat/app"
	"direct_message_service/pkg/health"
	"direct_message_service/pkg/middlewares"
	"direct_message_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// Handlers everything RegisterRoutes mounts
type Handlers struct {
	Chat      *app.ChatHandler
	Websocket *app.ChatWebsocketHandler
	Health    *health.Server
}

// RegisterRoutes 注册聊天相关的路由
// @title Direct Message Service API
// @version 1.0
// @description REST and websocket API of the direct message service
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(ctx context.Context, r *fiber.App, signer *token.Signer, h Handlers) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", ConnectCheck)
	r.Get("/health", HealthCheck(h.Health))
	r.Post("/debug", DebugLogFlag)

	auth := middlewares.JWTMiddleware(signer)

	h.Chat.Routes(r.Group("/api/v1/chat", auth))

	// upgrade only after the token is validated, Locals survive the upgrade
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	r.Get("/ws", auth, websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals(middlewares.TokenUserID).(string)
		h.Websocket.HandleConnection(ctx, userID, c)
	}))
}
