package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var errInvalidCredentials = errors.New("invalid credentials.json (expected installed/web client_id and client_secret)")

type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type googleCredentialsFile struct {
	Installed *struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web *struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// ParseGoogleOAuthClientJSON accepts either the raw credentials.json Google
// hands out (installed/web wrapper) or the flattened form this app writes.
func ParseGoogleOAuthClientJSON(b []byte) (ClientCredentials, error) {
	var f googleCredentialsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return ClientCredentials{}, fmt.Errorf("decode credentials json: %w", err)
	}

	var clientID, clientSecret string
	if f.Installed != nil {
		clientID, clientSecret = f.Installed.ClientID, f.Installed.ClientSecret
	} else if f.Web != nil {
		clientID, clientSecret = f.Web.ClientID, f.Web.ClientSecret
	}

	if clientID == "" || clientSecret == "" {
		var c ClientCredentials
		if err := json.Unmarshal(b, &c); err == nil && c.ClientID != "" && c.ClientSecret != "" {
			return c, nil
		}
		return ClientCredentials{}, errInvalidCredentials
	}

	return ClientCredentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}

func WriteClientCredentials(c ClientCredentials) error {
	if _, err := EnsureDir(); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	path, err := ClientCredentialsPath()
	if err != nil {
		return fmt.Errorf("resolve credentials path: %w", err)
	}

	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials json: %w", err)
	}

	b = append(b, '\n')

	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}

	return nil
}

// ReadClientCredentials resolves the OAuth client, in order: credentials file,
// build-time defaults, then POSTIT_CLIENT_ID / POSTIT_CLIENT_SECRET.
func ReadClientCredentials() (ClientCredentials, error) {
	path, err := ClientCredentialsPath()
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("resolve credentials path: %w", err)
	}

	b, err := os.ReadFile(path)
	if err == nil {
		var c ClientCredentials
		if unmarshalErr := json.Unmarshal(b, &c); unmarshalErr != nil {
			return ClientCredentials{}, fmt.Errorf("decode credentials: %w", unmarshalErr)
		}

		if c.ClientID != "" && c.ClientSecret != "" {
			return c, nil
		}
	} else if !os.IsNotExist(err) {
		return ClientCredentials{}, fmt.Errorf("read credentials: %w", err)
	}

	if DefaultClientID != "" && DefaultClientSecret != "" {
		return ClientCredentials{
			ClientID:     DefaultClientID,
			ClientSecret: DefaultClientSecret,
		}, nil
	}

	envClientID := os.Getenv("POSTIT_CLIENT_ID")
	envClientSecret := os.Getenv("POSTIT_CLIENT_SECRET")

	if envClientID != "" && envClientSecret != "" {
		return ClientCredentials{
			ClientID:     envClientID,
			ClientSecret: envClientSecret,
		}, nil
	}

	return ClientCredentials{}, fmt.Errorf(
		"no OAuth client configured: run 'postit credentials <credentials.json>' or set POSTIT_CLIENT_ID/POSTIT_CLIENT_SECRET")
}
