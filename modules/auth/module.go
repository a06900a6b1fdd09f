package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/go-monolith/mono"

	domain "github.com/example/secure-room-chat/domain/chat"
)

// ErrUnauthorized is returned when a connection credential cannot be resolved
// to an identity.
var ErrUnauthorized = errors.New("unauthorized")

// UserFinder resolves user ids against persistence.
type UserFinder interface {
	FindUserByID(ctx context.Context, id uint) (*domain.User, error)
}

// AuthModule validates connection credentials and resolves them to
// identities. Token issuance and account management belong to the external
// account service.
type AuthModule struct {
	cfg   Config
	jwt   *JWTManager
	users UserFinder
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule. The user finder is consulted per
// handshake, after the module starts.
func NewModule(cfg Config, users UserFinder) *AuthModule {
	return &AuthModule{cfg: cfg, users: users}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start initializes the token validator.
func (m *AuthModule) Start(_ context.Context) error {
	if m.cfg.SecretKey == "" {
		return fmt.Errorf("missing JWT secret key")
	}
	m.jwt = NewJWTManager(m.cfg)
	log.Println("[auth] Module started")
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.jwt != nil,
		Message: "operational",
	}
}

// Authenticate resolves a bearer credential to a persisted user. Any failure
// (missing, invalid, or expired credential, or an unknown user) yields
// ErrUnauthorized; callers close the connection with the unauthorized code.
func (m *AuthModule) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		slog.Warn("No token provided to websocket endpoint")
		return nil, ErrUnauthorized
	}

	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		slog.Error("Token validation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user, err := m.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		slog.Error("Failed to resolve token user", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if user == nil {
		slog.Error("Token user does not exist", "user_id", claims.UserID)
		return nil, fmt.Errorf("%w: user does not exist", ErrUnauthorized)
	}

	return user, nil
}

// Tokens returns the JWT manager, used by tooling to mint credentials.
func (m *AuthModule) Tokens() *JWTManager {
	return m.jwt
}
