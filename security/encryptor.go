package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrCiphertextTooShort is returned when a ciphertext is too small to
// contain the nonce AES-GCM prepends it with.
var ErrCiphertextTooShort = errors.New("security: ciphertext too short")

// MessageEncryptor encrypts and decrypts message payloads end to end, for
// transports whose broker (SQS, a shared Redis instance) should never see
// plaintext bodies.
type MessageEncryptor interface {
	Encrypt(plaintext []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}

// AESGCMEncryptor implements MessageEncryptor with AES-GCM (AES-256 when
// keyed through DeriveKey). The nonce is
// generated per call and prepended to the returned ciphertext, following the
// standard library's documented AEAD usage.
type AESGCMEncryptor struct {
	gcm cipher.AEAD
}

// DeriveKey expands a shared secret of any length into a 32-byte AES-256
// key using HKDF-SHA256, so operators can configure a single passphrase per
// environment instead of managing raw key material. info should name the
// purpose ("outbox-payload-encryption") to keep keys derived from the same
// secret independent across components.
func DeriveKey(secret, salt []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, secret, salt, []byte(info))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	return key, nil
}

// NewAESGCMEncryptor returns a MessageEncryptor keyed by a 16, 24 or 32 byte
// AES key (selecting AES-128/192/256 respectively). Use DeriveKey to obtain
// one from an arbitrary-length shared secret.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: new gcm: %w", err)
	}
	return &AESGCMEncryptor{gcm: gcm}, nil
}

// Encrypt returns nonce||ciphertext||tag.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: read nonce: %w", err)
	}
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt, returning the original plaintext.
func (e *AESGCMEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	size := e.gcm.NonceSize()
	if len(ciphertext) < size {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:size], ciphertext[size:]
	plaintext, err := e.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt: %w", err)
	}
	return plaintext, nil
}
