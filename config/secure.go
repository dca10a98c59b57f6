package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"

	"github.com/caasmo/dripsched/db"
)

// ScopeApplication is the config store scope this service's own settings
// are saved under.
const ScopeApplication = "application"

// SecureStore stores and retrieves encrypted configuration blobs.
// Implementations handle the encryption/decryption details.
type SecureStore interface {
	// Latest retrieves the latest configuration for scope, decrypts it,
	// and returns the plaintext TOML bytes.
	Latest(scope string) ([]byte, error)

	// Save encrypts plaintextData and stores it as the latest
	// configuration for scope.
	Save(scope string, plaintextData []byte, description string) error
}

// secureStoreAge implements SecureStore using age, keyed off a single
// X25519 identity held in memory for the process lifetime.
type secureStoreAge struct {
	store    db.ConfigStore
	identity *age.X25519Identity
	logger   *slog.Logger
}

// NewSecureStoreAge builds a SecureStore from an age identity in its
// "AGE-SECRET-KEY-1..." textual form, as produced by age-keygen.
func NewSecureStoreAge(store db.ConfigStore, ageSecretKey string, logger *slog.Logger) (SecureStore, error) {
	id, err := age.ParseX25519Identity(ageSecretKey)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: parsing age identity: %w", err)
	}
	return &secureStoreAge{store: store, identity: id, logger: logger.With("secure_store", "age")}, nil
}

func (s *secureStoreAge) Latest(scope string) ([]byte, error) {
	encrypted, err := s.store.LatestConfig(scope)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: fetch latest config for scope %q: %w", scope, err)
	}
	if len(encrypted) == 0 {
		return nil, fmt.Errorf("secureconfig: no configuration content found for scope %q", scope)
	}

	r, err := age.Decrypt(bytes.NewReader(encrypted), s.identity)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: decrypt scope %q: %w", scope, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: read decrypted stream for scope %q: %w", scope, err)
	}
	return plaintext, nil
}

func (s *secureStoreAge) Save(scope string, plaintextData []byte, description string) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("secureconfig: create age encryption writer: %w", err)
	}
	if _, err := w.Write(plaintextData); err != nil {
		return fmt.Errorf("secureconfig: write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("secureconfig: close age encryption writer: %w", err)
	}

	if err := s.store.InsertConfig(scope, buf.Bytes(), "toml", description); err != nil {
		return fmt.Errorf("secureconfig: insert config for scope %q: %w", scope, err)
	}
	s.logger.Info("saved secure config", "scope", scope)
	return nil
}
