package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keySize   = 32 // AES-256
	ivSize    = 16
	tagSize   = 16
	tokenSep  = ":"
	tokenPart = 3
)

var (
	// ErrMalformedToken is returned when a stored credential does not have the
	// iv:authTag:ciphertext shape.
	ErrMalformedToken = errors.New("malformed credential token")

	// ErrDecryptFailed is returned when authentication of a token fails. The
	// vault fails closed: it never returns plaintext from a tampered token.
	ErrDecryptFailed = errors.New("credential decryption failed")
)

// Vault encrypts mailbox credentials with AES-256-GCM. Tokens have the form
// iv:authTag:ciphertext with hex-encoded fields and a random 16-byte IV per
// call.
type Vault struct {
	aead cipher.AEAD
}

// New derives the vault key from the configured secret. A secret that is
// exactly a 32-byte hex or base64 value is used directly; anything else is
// hashed to 32 bytes with SHA-256.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault secret must not be empty")
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

func deriveKey(secret string) []byte {
	if b, err := hex.DecodeString(secret); err == nil && len(b) == keySize {
		return b
	}
	if b, err := base64.StdEncoding.DecodeString(secret); err == nil && len(b) == keySize {
		return b
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Encrypt seals plaintext into an iv:authTag:ciphertext token.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("plaintext must not be empty")
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, tokenSep), nil
}

// Decrypt opens an iv:authTag:ciphertext token. A tampered or truncated token
// fails with ErrDecryptFailed, never with incorrect plaintext.
func (v *Vault) Decrypt(token string) (string, error) {
	parts := strings.Split(token, tokenSep)
	if len(parts) != tokenPart {
		return "", ErrMalformedToken
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", ErrMalformedToken
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrMalformedToken
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedToken
	}

	plaintext, err := v.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
