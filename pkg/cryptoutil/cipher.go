// Package cryptoutil implements the envelope-encryption primitives that
// protect credentials at rest: AES-256-GCM with domain-separating
// additional authenticated data. It is pure — no I/O, no state beyond the
// key it was constructed with.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

const (
	keyLen   = 32
	nonceLen = 12
	tagLen   = 16
	minBlob  = nonceLen + tagLen
)

// Cipher performs AES-256-GCM encryption with a fixed 32-byte key supplied
// at construction. The zero value is not usable; build one with NewCipher
// or NewCipherFromHex.
type Cipher struct {
	key [keyLen]byte
}

// NewCipher constructs a Cipher from exactly 32 bytes of key material.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keyLen {
		return nil, apperr.New(apperr.EncryptionError, fmt.Sprintf("key must be %d bytes, got %d", keyLen, len(key)))
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// NewCipherFromHex decodes a hex-encoded master key, as supplied via
// AGENTKEY_MASTER_KEY, and constructs a Cipher from it.
func NewCipherFromHex(hexKey string) (*Cipher, error) {
	raw, err := DecodeHexKey(hexKey)
	if err != nil {
		return nil, err
	}
	return NewCipher(raw[:])
}

// DecodeHexKey decodes a hex-encoded 32-byte master key, the shape
// config.FromEnv validates AGENTKEY_MASTER_KEY against before any Cipher
// is constructed.
func DecodeHexKey(hexKey string) ([keyLen]byte, error) {
	var out [keyLen]byte
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return out, apperr.Wrap(apperr.EncryptionError, "invalid hex master key", err)
	}
	if len(raw) != keyLen {
		return out, apperr.New(apperr.EncryptionError, fmt.Sprintf("master key must decode to %d bytes, got %d", keyLen, len(raw)))
	}
	copy(out[:], raw)
	return out, nil
}

// Encrypt draws a fresh 96-bit nonce from crypto/rand, encrypts plaintext
// under aad, and returns nonce‖ciphertext‖tag. aad must never be empty —
// every ciphertext in this system is domain-separated by construction.
func (c *Cipher) Encrypt(plaintext, aad []byte) ([]byte, error) {
	if len(aad) == 0 {
		return nil, apperr.New(apperr.EncryptionError, "aad must not be empty")
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.EncryptionError, "failed to init block cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, apperr.Wrap(apperr.EncryptionError, "failed to init gcm", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperr.Wrap(apperr.EncryptionError, "failed to generate nonce", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	out := make([]byte, 0, nonceLen+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt. Any of {wrong key, modified ciphertext/tag,
// wrong aad, wrong nonce} fails with apperr.EncryptionError — no partial
// or unauthenticated plaintext is ever returned.
func (c *Cipher) Decrypt(blob, aad []byte) ([]byte, error) {
	if len(blob) < minBlob {
		return nil, apperr.New(apperr.EncryptionError, "invalid ciphertext: too short")
	}
	if len(aad) == 0 {
		return nil, apperr.New(apperr.EncryptionError, "aad must not be empty")
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.EncryptionError, "failed to init block cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, apperr.Wrap(apperr.EncryptionError, "failed to init gcm", err)
	}

	nonce, ciphertext := blob[:nonceLen], blob[nonceLen:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, apperr.Wrap(apperr.EncryptionError, "decryption failed", err)
	}
	return plaintext, nil
}
