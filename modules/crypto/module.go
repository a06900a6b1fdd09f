package crypto

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
)

// Config holds the crypto module configuration.
type Config struct {
	// KeyAlias names the KMS key used to generate data keys. Required; the
	// process refuses to start without it.
	KeyAlias string `env:"AWS_KMS_KEY_ALIAS_NAME"`
}

// CryptoModule owns the ContentCipher used for message confidentiality.
type CryptoModule struct {
	cfg    Config
	gen    DataKeyGenerator
	cipher *ContentCipher
}

// Compile-time interface checks.
var _ mono.Module = (*CryptoModule)(nil)
var _ mono.HealthCheckableModule = (*CryptoModule)(nil)

// NewModule creates a new CryptoModule.
func NewModule(cfg Config) *CryptoModule {
	return &CryptoModule{cfg: cfg}
}

// Name returns the module name.
func (m *CryptoModule) Name() string {
	return "crypto"
}

// SetKeyGenerator overrides the KMS-backed generator. Used by tests.
func (m *CryptoModule) SetKeyGenerator(gen DataKeyGenerator) {
	m.gen = gen
}

// Start fetches the data key and builds the cipher. Any failure here aborts
// startup: the service never runs without encryption capability.
func (m *CryptoModule) Start(ctx context.Context) error {
	if m.gen == nil {
		gen, err := NewKMSKeyGenerator(ctx, m.cfg.KeyAlias)
		if err != nil {
			return fmt.Errorf("failed to initialize KMS key generator: %w", err)
		}
		m.gen = gen
	}

	cipher, err := NewContentCipher(ctx, m.gen)
	if err != nil {
		return fmt.Errorf("failed to initialize content cipher: %w", err)
	}
	m.cipher = cipher

	log.Println("[crypto] Module started")
	return nil
}

// Stop shuts down the module.
func (m *CryptoModule) Stop(_ context.Context) error {
	log.Println("[crypto] Module stopped")
	return nil
}

// Health returns the health status.
func (m *CryptoModule) Health(_ context.Context) mono.HealthStatus {
	if m.cipher == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "cipher not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// Cipher returns the content cipher. Valid after Start.
func (m *CryptoModule) Cipher() *ContentCipher {
	return m.cipher
}
