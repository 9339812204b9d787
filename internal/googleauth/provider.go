// Package googleauth is the credential provider: it owns the OAuth sign-in
// flow, silent sign-in from the stored token, token refresh, sign-out, and
// revocation.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"github.com/polaco8525/postit/internal/config"
	"github.com/polaco8525/postit/internal/secrets"
)

// revokeEndpoint is Google's OAuth token revocation URL.
const revokeEndpoint = "https://oauth2.googleapis.com/revoke"

// Scopes requested at sign-in: app-private Drive files plus basic identity.
var Scopes = []string{
	drive.DriveFileScope,
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Identity describes the signed-in Google account.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// SignInOptions tunes the interactive flow.
type SignInOptions struct {
	// Manual skips the loopback server: the auth URL is printed and the user
	// pastes the redirect URL back. Used when no browser can be opened.
	Manual bool
	// ForceConsent re-prompts Google's consent screen to mint a fresh
	// refresh token.
	ForceConsent bool
	// Timeout bounds the whole flow. Defaults to 2 minutes.
	Timeout time.Duration
}

// Provider implements the credential lifecycle against Google OAuth.
type Provider struct {
	creds      config.ClientCredentials
	store      *secrets.Store
	revokeURL  string
	httpClient *http.Client
}

// New reads the configured OAuth client and opens the token keyring.
func New() (*Provider, error) {
	creds, err := config.ReadClientCredentials()
	if err != nil {
		return nil, err
	}

	store, err := secrets.OpenDefault()
	if err != nil {
		return nil, err
	}

	return NewWithStore(creds, store), nil
}

// NewWithStore builds a provider over an explicit token store; tests pass a
// store backed by keyring.NewArrayKeyring.
func NewWithStore(creds config.ClientCredentials, store *secrets.Store) *Provider {
	return &Provider{
		creds:      creds,
		store:      store,
		revokeURL:  revokeEndpoint,
		httpClient: http.DefaultClient,
	}
}

func (p *Provider) oauthConfig(redirectURL string) oauth2.Config {
	return oauth2.Config{
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// SignIn runs the interactive OAuth flow, stores the resulting token, and
// returns the account identity. A user decline or cancelled context returns
// (nil, nil): not signed in, but not an error.
func (p *Provider) SignIn(ctx context.Context, opts SignInOptions) (*Identity, error) {
	tok, err := p.authorize(ctx, opts)
	if err != nil {
		if errors.Is(err, errDeclined) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, &AuthenticationError{Cause: WrapOAuthError(err)}
	}

	cfg := p.oauthConfig("")
	ts := cfg.TokenSource(ctx, tok)

	identity, err := fetchIdentity(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}

	record := secrets.Token{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		Expiry:       tok.Expiry,
		ID:           identity.ID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		AvatarURL:    identity.AvatarURL,
	}
	if err := p.store.SetToken(record); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	return identity, nil
}

// SignInSilently restores the identity captured at the last interactive
// sign-in. It never prompts and never touches the network; (nil, nil) means
// no stored credential.
func (p *Provider) SignInSilently(ctx context.Context) (*Identity, error) {
	_ = ctx

	tok, err := p.store.GetToken()
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, nil
		}
		return nil, &AuthenticationError{Cause: err}
	}

	return &Identity{
		ID:          tok.ID,
		Email:       tok.Email,
		DisplayName: tok.DisplayName,
		AvatarURL:   tok.AvatarURL,
	}, nil
}

// TokenSource returns an auto-refreshing token source for the stored
// credential. Fails with AuthenticationError before any network call when no
// credential is stored.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	stored, err := p.store.GetToken()
	if err != nil {
		return nil, &AuthenticationError{Cause: err}
	}
	if stored.RefreshToken == "" {
		return nil, &AuthenticationError{Cause: secrets.ErrNotFound}
	}

	seed := &oauth2.Token{
		RefreshToken: stored.RefreshToken,
		AccessToken:  stored.AccessToken,
		Expiry:       stored.Expiry,
	}

	cfg := p.oauthConfig("")
	return oauth2.ReuseTokenSource(seed, cfg.TokenSource(ctx, seed)), nil
}

// AccessToken returns a live access token, refreshing if expired.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return "", err
	}

	tok, err := ts.Token()
	if err != nil {
		return "", &AuthenticationError{Cause: WrapOAuthError(err)}
	}

	return tok.AccessToken, nil
}

// SignOut forgets the stored credential. Local data is untouched.
func (p *Provider) SignOut() error {
	return p.store.DeleteToken()
}

// Revoke invalidates the credential at Google, then forgets it locally.
// Revocation of an already-dead token is treated as success.
func (p *Provider) Revoke(ctx context.Context) error {
	stored, err := p.store.GetToken()
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil
		}
		return err
	}

	form := url.Values{"token": {stored.RefreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("revoke token: unexpected status %s", resp.Status)
	}

	return p.store.DeleteToken()
}

// HasCredential reports whether a credential is stored, without validating it.
func (p *Provider) HasCredential() bool {
	return p.store.HasToken()
}
