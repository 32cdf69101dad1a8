// Package credential encrypts provider and vector store API keys before they
// are written to the local configuration table. Values are sealed with
// AES-256-GCM under a machine-derived key.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// EncryptedPrefix marks sealed values in storage.
const EncryptedPrefix = "enc:v1:"

const salt = "laigent-credential-manager-v1"

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidFormat    = errors.New("invalid encrypted format")
)

// Manager seals and opens credentials with a key bound to this machine and user.
type Manager struct {
	aead cipher.AEAD
}

func NewManager() (*Manager, error) {
	block, err := aes.NewCipher(machineKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Manager{aead: aead}, nil
}

// IsSecretKey reports whether a configuration key holds a credential.
// Keys such as "openai.api_key" or "pinecone.api_key" qualify.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "api_key") || strings.HasSuffix(k, ".token")
}

// Seal encrypts value when key names a credential and returns other values
// unchanged. The key is authenticated with the value, so a sealed value only
// opens under the key it was stored with.
func (m *Manager) Seal(key, value string) (string, error) {
	if !IsSecretKey(key) || IsEncrypted(value) {
		return value, nil
	}
	return m.seal(value, []byte(key))
}

// Open reverses Seal. Values without EncryptedPrefix are returned unchanged
// so hand-written plaintext settings keep working. The empty string stays
// empty in both directions.
func (m *Manager) Open(key, stored string) (string, error) {
	if !IsSecretKey(key) {
		return stored, nil
	}
	return m.open(stored, []byte(key))
}

func (m *Manager) seal(plaintext string, aad []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), aad)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (m *Manager) open(stored string, aad []byte) (string, error) {
	encoded, ok := strings.CutPrefix(stored, EncryptedPrefix)
	if !ok {
		return stored, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrInvalidFormat, err)
	}
	n := m.aead.NonceSize()
	if len(sealed) < n+m.aead.Overhead() {
		return "", ErrInvalidFormat
	}

	plaintext, err := m.aead.Open(nil, sealed[:n], sealed[n:], aad)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncrypted checks if a value is already sealed.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// machineKey hashes host, home directory, platform and user into a 32-byte
// AES-256 key. It is stable across restarts and differs between machines.
func machineKey() []byte {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()

	parts := []string{hostname, home, runtime.GOOS, runtime.GOARCH, salt}
	if uid := os.Getuid(); uid != -1 {
		parts = append(parts, fmt.Sprintf("uid:%d", uid))
	}
	if user := os.Getenv("USER"); user != "" {
		parts = append(parts, user)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return sum[:]
}

// MaskSecret shows the first and last four characters of a long secret.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
