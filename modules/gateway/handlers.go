package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/example/secure-room-chat/modules/session"
)

// CloseUnauthorized is sent when the handshake credential is rejected,
// before any application frame is exchanged.
const CloseUnauthorized = 4001

const closeWriteWait = 5 * time.Second

// setupRoutes configures all HTTP routes.
func (m *GatewayModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))
}

// healthHandler handles GET /health.
func (m *GatewayModule) healthHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	return c.JSON(fiber.Map{
		"status": "healthy",
		"details": fiber.Map{
			"chat":   m.chat.Health(ctx).Healthy,
			"crypto": m.crypto.Health(ctx).Healthy,
			"fanout": m.fanout.Health(ctx).Healthy,
		},
	})
}

// handleWebSocket authenticates the connection, runs a ProtocolSession for
// it, and pumps inbound frames until the peer disconnects.
func (m *GatewayModule) handleWebSocket(c *websocket.Conn) {
	ctx := context.Background()

	user, err := m.auth.Authenticate(ctx, c.Query("token"))
	if err != nil {
		slog.Warn("Rejected websocket connection", "error", err)
		closeFrame := websocket.FormatCloseMessage(CloseUnauthorized, "unauthorized")
		_ = c.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(closeWriteWait))
		_ = c.Close()
		return
	}

	slog.Info("Accepted websocket connection", "user", user.Username)

	sess := session.New(*user, c, session.Deps{
		Registry: m.registry,
		Resolver: m.chat,
		Store:    m.chat,
		Cipher:   m.crypto.Cipher(),
		Layer:    m.fanout.Layer(),
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sess.Start(sessionCtx); err != nil {
		sess.Close(ctx)
		_ = c.Close()
		return
	}
	defer func() {
		sess.Close(ctx)
		slog.Info("Disconnected websocket connection", "user", user.Username)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("Peer closed connection", "user", user.Username)
			} else {
				slog.Error("Read error", "user", user.Username, "error", err)
			}
			return
		}
		sess.HandleFrame(sessionCtx, data)
	}
}
