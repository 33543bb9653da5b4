// Package vault encrypts stored passcodes so their plaintext can be revealed
// later: to the operator UI, and to guest verification at the door, which
// compares entered codes against revealed guest plaintext. Main verification
// runs on hashes alone. A missing key disables reveal, and with it guest
// codes.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var errKeySize = errors.New("vault key must decode to 32 bytes")

// Vault seals and opens small strings with XChaCha20-Poly1305. A nil *Vault
// is valid and behaves as disabled: Encrypt returns nil and Decrypt returns
// the empty string.
type Vault struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// New builds a vault from a base64-encoded 32-byte key. An empty key yields
// a disabled (nil) vault without error; a malformed key is an error so a
// typo'd deployment does not silently lose reveal support.
func New(keyB64 string) (*Vault, error) {
	if keyB64 == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init vault cipher: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext as nonce||ciphertext. Returns nil when disabled.
func (v *Vault) Encrypt(plaintext string) []byte {
	if v == nil || v.aead == nil {
		return nil
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil
	}
	return v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
}

// Decrypt opens a previously sealed blob. Any failure (disabled vault, short
// blob, tampered ciphertext, wrong key) yields the empty string — reveal is
// best-effort by contract.
func (v *Vault) Decrypt(blob []byte) string {
	if v == nil || v.aead == nil || len(blob) <= chacha20poly1305.NonceSizeX {
		return ""
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	plain, err := v.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return ""
	}
	return string(plain)
}
