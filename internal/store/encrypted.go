package store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypted seals values before handing them to the wrapped [Backend].
//
// Each value is stored as base64(nonce || ciphertext) with the key name as additional data,
// so a sealed value copied under another key fails to open.
type Encrypted struct {
	inner Backend
	aead  cipher.AEAD
}

// NewEncrypted wraps inner with a 32 byte key.
func NewEncrypted(inner Backend, key []byte) (*Encrypted, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return &Encrypted{inner: inner, aead: aead}, nil
}

// NewEncryptedHex wraps inner with a hex encoded 32 byte key.
func NewEncryptedHex(inner Backend, hexKey string) (*Encrypted, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be hex encoded: %w", err)
	}
	return NewEncrypted(inner, key)
}

func (e *Encrypted) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := e.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", false, fmt.Errorf("failed to decode sealed %s: %w", key, err)
	}
	if len(raw) < e.aead.NonceSize() {
		return "", false, fmt.Errorf("sealed %s is truncated", key)
	}

	nonce, ciphertext := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", false, fmt.Errorf("failed to open sealed %s: %w", key, err)
	}
	return string(plain), true, nil
}

func (e *Encrypted) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(value)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return e.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}
