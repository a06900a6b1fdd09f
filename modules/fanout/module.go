package fanout

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Config holds the fanout module configuration.
type Config struct {
	// RedisURL selects the cross-instance Redis layer when set. Empty means
	// single-instance local delivery.
	RedisURL string `env:"REDIS_URL"`
}

// FanoutModule owns the group layer used for event delivery.
type FanoutModule struct {
	cfg    Config
	client *redis.Client
	layer  GroupLayer
}

// Compile-time interface checks.
var _ mono.Module = (*FanoutModule)(nil)
var _ mono.HealthCheckableModule = (*FanoutModule)(nil)

// NewModule creates a new FanoutModule.
func NewModule(cfg Config) *FanoutModule {
	return &FanoutModule{cfg: cfg}
}

// Name returns the module name.
func (m *FanoutModule) Name() string {
	return "fanout"
}

// Start builds the configured group layer.
func (m *FanoutModule) Start(ctx context.Context) error {
	if m.cfg.RedisURL == "" {
		m.layer = NewLocalLayer()
		log.Println("[fanout] Module started (local delivery)")
		return nil
	}

	opt, err := redis.ParseURL(m.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	m.client = redis.NewClient(opt)
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	m.layer = NewRedisLayer(m.client)
	log.Println("[fanout] Module started (redis delivery)")
	return nil
}

// Stop shuts down the module.
func (m *FanoutModule) Stop(_ context.Context) error {
	if rl, ok := m.layer.(*RedisLayer); ok {
		_ = rl.Close()
	}
	if m.client != nil {
		_ = m.client.Close()
	}
	log.Println("[fanout] Module stopped")
	return nil
}

// Health returns the health status.
func (m *FanoutModule) Health(ctx context.Context) mono.HealthStatus {
	if m.layer == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "layer not initialized",
		}
	}
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// Layer returns the group layer. Valid after Start.
func (m *FanoutModule) Layer() GroupLayer {
	return m.layer
}
