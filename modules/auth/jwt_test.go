package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/example/secure-room-chat/domain/chat"
)

func testConfig() Config {
	return Config{
		SecretKey:     "test-secret-key",
		Issuer:        "secure-room-chat-test",
		TokenDuration: 15 * time.Minute,
	}
}

func TestJWTManager_ValidateToken(t *testing.T) {
	manager := NewJWTManager(testConfig())

	token, err := manager.GenerateToken(7, "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("claims.UserID = %d, want 7", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("claims.Username = %q, want %q", claims.Username, "alice")
	}
}

func TestJWTManager_ValidateToken_Invalid(t *testing.T) {
	manager := NewJWTManager(testConfig())

	foreign := NewJWTManager(Config{
		SecretKey:     "another-secret",
		Issuer:        "other",
		TokenDuration: 15 * time.Minute,
	})
	foreignToken, err := foreign.GenerateToken(7, "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", foreignToken, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.ValidateToken(tt.token); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTManager_ValidateToken_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.TokenDuration = -time.Minute
	manager := NewJWTManager(cfg)

	token, err := manager.GenerateToken(7, "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken() error = %v, want ErrExpiredToken", err)
	}
}

// fakeUserFinder resolves a fixed set of users.
type fakeUserFinder struct {
	users map[uint]*domain.User
}

func (f fakeUserFinder) FindUserByID(_ context.Context, id uint) (*domain.User, error) {
	return f.users[id], nil
}

func startedModule(t *testing.T, users fakeUserFinder) *AuthModule {
	t.Helper()
	module := NewModule(testConfig(), users)
	if err := module.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return module
}

func TestAuthModule_Authenticate(t *testing.T) {
	ctx := context.Background()
	alice := &domain.User{ID: 7, Username: "alice"}
	module := startedModule(t, fakeUserFinder{users: map[uint]*domain.User{7: alice}})

	token, err := module.Tokens().GenerateToken(alice.ID, alice.Username)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	user, err := module.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != alice.ID || user.Username != alice.Username {
		t.Errorf("Authenticate() = %+v, want %+v", user, alice)
	}
}

func TestAuthModule_Authenticate_Rejected(t *testing.T) {
	ctx := context.Background()
	module := startedModule(t, fakeUserFinder{users: map[uint]*domain.User{}})

	// Token for a user that does not exist in persistence.
	orphanToken, err := module.Tokens().GenerateToken(42, "ghost")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing credential", ""},
		{"invalid credential", "not-a-token"},
		{"unknown user", orphanToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := module.Authenticate(ctx, tt.token); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Authenticate() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}
