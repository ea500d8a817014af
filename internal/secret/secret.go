// Package secret reversibly protects credential strings at rest.
//
// WHY nacl/secretbox?
// secretbox (XSalsa20 + Poly1305) is authenticated encryption: decryption
// either returns the exact original plaintext or fails outright. It can never
// silently return garbage for a wrong key or a corrupted blob, which is the
// property the credential lifecycle depends on: any unrecoverable blob is
// treated the same as a rejected token.
//
// The configured passphrase is stretched to a 32-byte key with SHA-256, so
// operators can supply any reasonably long random string. Each Protect call
// draws a fresh random 24-byte nonce; the output is base64(nonce || box).
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
)

const nonceSize = 24

// Cipher protects and unprotects secrets under a single key.
type Cipher struct {
	key [32]byte
}

// New derives a Cipher from the configured passphrase.
func New(passphrase string) *Cipher {
	return &Cipher{key: sha256.Sum256([]byte(passphrase))}
}

// Protect encrypts plaintext and returns an opaque base64 string safe to
// store in the database.
func (c *Cipher) Protect(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: generating nonce: %w", err)
	}

	// Seal appends the ciphertext to the nonce so a single string round-trips.
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Unprotect recovers the plaintext from a blob produced by Protect.
//
// Any failure (bad base64, truncated blob, wrong key, flipped bit) comes
// back as apperror.ErrCorruptSecret. Callers treat it exactly like a token
// the remote API rejected: invalidate and re-prompt.
func (c *Cipher) Unprotect(protected string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(protected)
	if err != nil {
		return "", apperror.CorruptSecret("stored secret is not valid base64")
	}
	if len(raw) < nonceSize {
		return "", apperror.CorruptSecret("stored secret is too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", apperror.CorruptSecret("stored secret failed authentication")
	}

	return string(plaintext), nil
}
