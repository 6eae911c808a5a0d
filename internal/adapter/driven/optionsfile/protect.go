package optionsfile

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shirou/gopsutil/v4/host"
	"golang.org/x/crypto/hkdf"
)

const (
	protectedPrefix = "v2:"
	legacySalt      = "EmbyGitHubPlugin2024"
	keyInfo         = "pluginsync token protection"
)

// Protector obfuscates secrets with a key derived from the machine identity. It
// keeps the token off disk in clear text; anyone who can read the file and the
// machine identity can recover it.
type Protector struct {
	aead      cipher.AEAD
	legacyKey [sha256.Size]byte
}

// NewProtector derives an AES-256-GCM key from identity with HKDF-SHA256. legacyName
// is the machine name used by the older XOR scheme, accepted on read only.
func NewProtector(identity, legacyName string) (*Protector, error) {
	if identity == "" {
		return nil, errors.New("machine identity is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(identity), []byte(legacySalt), []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Protector{
		aead:      gcm,
		legacyKey: sha256.Sum256([]byte(legacyName + legacySalt)),
	}, nil
}

// NewMachineProtector creates a Protector keyed on this host's id, falling back to
// its hostname.
func NewMachineProtector(ctx context.Context) (*Protector, error) {
	hostname, _ := os.Hostname()

	identity, err := host.HostIDWithContext(ctx)
	if err != nil || strings.TrimSpace(identity) == "" {
		slog.Debug("host id unavailable, using hostname for token key", "error", err)
		identity = hostname
	}

	return NewProtector(identity, hostname)
}

// Protect returns the "v2:"-prefixed base64 encoding of nonce || ciphertext.
func (p *Protector) Protect(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := p.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return protectedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Unprotect reverses Protect. It never fails: values written by the older XOR scheme
// or stored as plain base64 are decoded when the result is printable text, and
// anything else is returned unchanged. A "v2:" value that cannot be decrypted, for
// example after moving to another machine, yields "".
func (p *Protector) Unprotect(value string) string {
	if value == "" {
		return ""
	}

	if encoded, ok := strings.CutPrefix(value, protectedPrefix); ok {
		plain, err := p.decrypt(encoded)
		if err != nil {
			slog.Warn("stored token cannot be decrypted on this machine; set it again", "error", err)
			return ""
		}
		return plain
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		slog.Debug("stored token is not encoded, using as-is")
		return value
	}

	legacy := make([]byte, len(raw))
	for i, b := range raw {
		legacy[i] = b ^ p.legacyKey[i%len(p.legacyKey)]
	}
	if isPrintable(legacy) {
		return string(legacy)
	}
	if isPrintable(raw) {
		return string(raw)
	}

	return value
}

func (p *Protector) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := p.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func isPrintable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
