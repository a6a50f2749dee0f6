// Package crypto seals client-held cookies and signs session values.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrMissingKey       = errors.New("key is required")
	ErrInvalidKey       = errors.New("encryption key must be 32 bytes for AES-256")
	ErrWeakSecret       = errors.New("signing secret must be at least 32 bytes")
	ErrSealedTooShort   = errors.New("sealed value too short")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sealer encrypts and authenticates opaque payloads stored on the client.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

type aesGCMSealer struct {
	aead cipher.AEAD
}

// NewSealer creates an AES-256-GCM sealer from a 32-byte key.
func NewSealer(key string) (Sealer, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	keyBytes := []byte(key)
	if len(keyBytes) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aesGCMSealer{aead: aead}, nil
}

func (s *aesGCMSealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *aesGCMSealer) Open(sealed string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed value: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrSealedTooShort
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed value: %w", err)
	}

	return plaintext, nil
}

// Signer appends an HMAC-SHA256 tag to a readable value: "<value>.<tag>".
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) Sign(value string) string {
	return value + "." + s.tag(value)
}

// Verify returns the original value when the tag matches.
func (s *Signer) Verify(signed string) (string, error) {
	idx := strings.LastIndex(signed, ".")
	if idx <= 0 || idx == len(signed)-1 {
		return "", ErrInvalidSignature
	}
	value, tag := signed[:idx], signed[idx+1:]
	if !hmac.Equal([]byte(tag), []byte(s.tag(value))) {
		return "", ErrInvalidSignature
	}
	return value, nil
}

func (s *Signer) tag(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
