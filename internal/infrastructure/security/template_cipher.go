package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealVersion = byte(1)
	hkdfInfo    = "biometric-template/v1"
)

var ErrSealedMalformed = errors.New("sealed template malformed")

// TemplateCipher seals template payloads with XChaCha20-Poly1305 under a key
// derived from the configured master key. Layout: version | nonce | box.
type TemplateCipher struct {
	aead cipher.AEAD
}

func NewTemplateCipher(masterKey []byte) (*TemplateCipher, error) {
	if len(masterKey) < chacha20poly1305.KeySize {
		return nil, fmt.Errorf("template key must be at least %d bytes", chacha20poly1305.KeySize)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive template key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &TemplateCipher{aead: aead}, nil
}

func (c *TemplateCipher) Seal(plaintext, aad []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, 1+ns, 1+ns+len(plaintext)+c.aead.Overhead())
	out[0] = sealVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return c.aead.Seal(out, out[1:1+ns], plaintext, aad), nil
}

func (c *TemplateCipher) Open(sealed, aad []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < 1+ns+c.aead.Overhead() || sealed[0] != sealVersion {
		return nil, ErrSealedMalformed
	}
	plain, err := c.aead.Open(nil, sealed[1:1+ns], sealed[1+ns:], aad)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	return plain, nil
}
