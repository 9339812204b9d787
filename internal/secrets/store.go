// Package secrets stores the Google account token and identity in the OS
// keyring, falling back to an encrypted file backend.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/99designs/keyring"

	"github.com/polaco8525/postit/internal/config"
)

// tokenKey is the single keyring item; the app holds one Google account.
const tokenKey = "google-account"

// keyringBackendEnv overrides backend selection (e.g. "file" in CI).
const keyringBackendEnv = "POSTIT_KEYRING_BACKEND"

var ErrNotFound = errors.New("no stored token")

// Token is the stored credential plus the identity captured at sign-in, so
// silent sign-in can restore the user without a network call.
type Token struct {
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	ID           string    `json:"id,omitempty"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store wraps a keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an existing keyring; tests pass keyring.NewArrayKeyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// OpenDefault opens the platform keyring for this app.
func OpenDefault() (*Store, error) {
	fileDir, err := config.KeyringDir()
	if err != nil {
		return nil, fmt.Errorf("resolve keyring dir: %w", err)
	}

	cfg := keyring.Config{
		ServiceName: config.AppName,
		FileDir:     fileDir,
		FilePasswordFunc: func(_ string) (string, error) {
			return config.AppName, nil
		},
	}

	if backend := strings.TrimSpace(os.Getenv(keyringBackendEnv)); backend != "" {
		cfg.AllowedBackends = []keyring.BackendType{keyring.BackendType(backend)}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	return &Store{ring: ring}, nil
}

// SetToken stores the token, replacing any previous one.
func (s *Store) SetToken(tok Token) error {
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now()
	}

	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := s.ring.Set(keyring.Item{Key: tokenKey, Data: b, Label: "postit Google account"}); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	return nil
}

// GetToken returns the stored token, or ErrNotFound.
func (s *Store) GetToken() (Token, error) {
	item, err := s.ring.Get(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("read token: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}

	return tok, nil
}

// DeleteToken removes the stored token. Absence is not an error.
func (s *Store) DeleteToken() error {
	if err := s.ring.Remove(tokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// HasToken reports whether a token is stored.
func (s *Store) HasToken() bool {
	_, err := s.GetToken()
	return err == nil
}
