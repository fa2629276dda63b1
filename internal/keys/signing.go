package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	keyFileName = "signing.key"
	keyBits     = 2048
)

// ErrNoKey is returned when no key exists and generation is disabled
var ErrNoKey = errors.New("no signing key found and auto-generation is disabled")

// Manager handles loading and generating the RSA key used to sign tokens
type Manager struct {
	keyFile   string
	storePath string
}

// NewManager creates a new signing key manager
func NewManager(keyFile, storePath string) *Manager {
	return &Manager{
		keyFile:   keyFile,
		storePath: storePath,
	}
}

// PrivateKey returns the signing key, loading it from disk or generating one
func (m *Manager) PrivateKey(autoGenerate bool) (*rsa.PrivateKey, error) {
	// An explicitly configured key must load
	if m.keyFile != "" {
		key, err := loadKey(m.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key from %s: %w", m.keyFile, err)
		}
		return key, nil
	}

	key, err := loadKey(m.KeyPath())
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load signing key from %s: %w", m.KeyPath(), err)
	}

	if !autoGenerate {
		return nil, ErrNoKey
	}

	return m.generateAndSaveKey()
}

// KeyPath returns where the key is read from
func (m *Manager) KeyPath() string {
	if m.keyFile != "" {
		return m.keyFile
	}
	return filepath.Join(m.storePath, keyFileName)
}

func (m *Manager) generateAndSaveKey() (*rsa.PrivateKey, error) {
	if err := os.MkdirAll(m.storePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key store directory: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if err := os.WriteFile(m.KeyPath(), keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}

	return key, nil
}

// loadKey reads a PKCS#1 or PKCS#8 RSA private key
func loadKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePEM(data)
}

// ParsePEM decodes an RSA private key in PKCS#1 or PKCS#8 form
func ParsePEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("PKCS#8 key is %T, not RSA", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
