package gateway

import (
	"context"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/secure-room-chat/modules/auth"
	"github.com/example/secure-room-chat/modules/chat"
	"github.com/example/secure-room-chat/modules/crypto"
	"github.com/example/secure-room-chat/modules/fanout"
	"github.com/example/secure-room-chat/modules/session"
)

// Config holds the gateway module configuration.
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`
}

// GatewayModule is the driving adapter: it terminates WebSocket connections
// and runs one ProtocolSession per connection.
type GatewayModule struct {
	cfg      Config
	app      *fiber.App
	auth     *auth.AuthModule
	chat     *chat.ChatModule
	crypto   *crypto.CryptoModule
	fanout   *fanout.FanoutModule
	registry *session.ConnectionRegistry
}

// Compile-time interface checks.
var _ mono.Module = (*GatewayModule)(nil)
var _ mono.HealthCheckableModule = (*GatewayModule)(nil)

// NewModule creates a new GatewayModule. The collaborators are consulted per
// connection, after every module has started.
func NewModule(
	cfg Config,
	authModule *auth.AuthModule,
	chatModule *chat.ChatModule,
	cryptoModule *crypto.CryptoModule,
	fanoutModule *fanout.FanoutModule,
	registry *session.ConnectionRegistry,
) *GatewayModule {
	return &GatewayModule{
		cfg:      cfg,
		auth:     authModule,
		chat:     chatModule,
		crypto:   cryptoModule,
		fanout:   fanoutModule,
		registry: registry,
	}
}

// Name returns the module name.
func (m *GatewayModule) Name() string {
	return "gateway"
}

// Start initializes the Fiber HTTP server.
func (m *GatewayModule) Start(_ context.Context) error {
	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(loggerMiddleware())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			log.Printf("[gateway] HTTP server error: %v", err)
		}
	}()

	log.Printf("[gateway] HTTP server started on :%s", m.cfg.Port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *GatewayModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[gateway] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *GatewayModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.cfg.Port,
		},
	}
}

// errorHandler handles Fiber errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "server_error",
		"message": message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[gateway] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
