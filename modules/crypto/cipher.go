package crypto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fernet/fernet-go"
)

var (
	// ErrMalformedCiphertext is returned when a ciphertext does not carry
	// embedded key material.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrDecryptionFailed is returned when the embedded key does not verify
	// the token, or the payload is corrupted.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// DataKeyGenerator obtains fresh symmetric key material from an external
// key-management service.
type DataKeyGenerator interface {
	GenerateDataKey(ctx context.Context, keySpec string) ([]byte, error)
}

// ContentCipher envelope-encrypts message bodies with a data key cached for
// the lifetime of the process. The encoded key material is stored alongside
// each ciphertext, so messages encrypted under historical keys remain
// decryptable without a key-version table.
type ContentCipher struct {
	key     *fernet.Key
	encoded string
}

// NewContentCipher requests an AES-256 data key from the generator and caches
// it. An error here is a fatal startup condition: the process must not run
// without encryption capability.
func NewContentCipher(ctx context.Context, gen DataKeyGenerator) (*ContentCipher, error) {
	material, err := gen.GenerateDataKey(ctx, "AES_256")
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	if len(material) != 32 {
		return nil, fmt.Errorf("unexpected data key length: %d", len(material))
	}

	var key fernet.Key
	copy(key[:], material)

	slog.Info("Created data key")
	return &ContentCipher{key: &key, encoded: key.Encode()}, nil
}

// Encrypt encrypts plaintext under the cached data key. The returned value is
// the encoded key joined to the token with a colon, self-describing which key
// decrypts it. Callers treat a failure as empty content, never as a fault.
func (c *ContentCipher) Encrypt(plaintext string) (string, error) {
	token, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		slog.Error("Encryption error", "error", err)
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return c.encoded + ":" + string(token), nil
}

// Decrypt extracts the key material embedded in the ciphertext and decrypts
// the token with it. Malformed input, a wrong key, or a corrupted payload
// yields an error that callers treat as empty content.
func (c *ContentCipher) Decrypt(ciphertext string) (string, error) {
	encodedKey, token, found := strings.Cut(ciphertext, ":")
	if !found {
		slog.Error("Decryption error", "error", ErrMalformedCiphertext)
		return "", ErrMalformedCiphertext
	}

	keys, err := fernet.DecodeKeys(encodedKey)
	if err != nil {
		slog.Error("Decryption error", "error", err)
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	plaintext := fernet.VerifyAndDecrypt([]byte(token), 0, keys)
	if plaintext == nil {
		slog.Error("Decryption error", "error", ErrDecryptionFailed)
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
