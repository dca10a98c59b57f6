package crawshaw

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"filippo.io/age"
)

// credential refresh tokens are encrypted at rest with an age identity,
// following the same identity-based encryption the config package uses for
// its own secrets. SetSecretIdentity installs the real identity at startup;
// until it is called, an ephemeral in-process identity is used instead so
// that store-level tests never need a key file on disk - a process restart
// with no configured key simply can no longer decrypt data written by the
// previous run, which is the expected operational behavior.
var (
	secretMu   sync.RWMutex
	identity   *age.X25519Identity
	recipient  *age.X25519Recipient
)

func init() {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		panic(fmt.Sprintf("crawshaw: generating fallback age identity: %v", err))
	}
	identity = id
	recipient = id.Recipient()
}

// SetSecretIdentity installs the age identity used to encrypt and decrypt
// credential refresh tokens. ageSecretKey is the identity's "AGE-SECRET-KEY-1..."
// representation, as produced by `age-keygen`.
func SetSecretIdentity(ageSecretKey string) error {
	id, err := age.ParseX25519Identity(ageSecretKey)
	if err != nil {
		return fmt.Errorf("parsing age identity: %w", err)
	}
	secretMu.Lock()
	identity = id
	recipient = id.Recipient()
	secretMu.Unlock()
	return nil
}

func encryptToken(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	secretMu.RLock()
	r := recipient
	secretMu.RUnlock()

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, r)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func decryptToken(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	secretMu.RLock()
	id := identity
	secretMu.RUnlock()

	r, err := age.Decrypt(bytes.NewReader([]byte(ciphertext)), id)
	if err != nil {
		return "", err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
