package googleauth

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// errDeclined marks a benign user refusal (consent screen "cancel").
var errDeclined = errors.New("authorization declined")

// authorize runs the OAuth code flow and returns the exchanged token.
func (p *Provider) authorize(ctx context.Context, opts SignInOptions) (*oauth2.Token, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if opts.Manual {
		return p.authorizeManual(ctx, state, opts.ForceConsent)
	}

	return p.authorizeLoopback(ctx, state, opts.ForceConsent)
}

// authorizeManual prints the auth URL and reads the pasted redirect URL.
func (p *Provider) authorizeManual(ctx context.Context, state string, forceConsent bool) (*oauth2.Token, error) {
	redirectURI := "http://localhost:1"
	cfg := p.oauthConfig(redirectURI)

	authURL := cfg.AuthCodeURL(state, authURLParams(forceConsent)...)
	fmt.Fprintln(os.Stderr, "Visit this URL to authorize:")
	fmt.Fprintln(os.Stderr, authURL)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "After authorizing, you'll be redirected to a localhost URL that won't load.")
	fmt.Fprintln(os.Stderr, "Copy the URL from your browser's address bar and paste it here.")
	fmt.Fprintln(os.Stderr)

	fmt.Fprint(os.Stderr, "Paste redirect URL: ")
	line, readErr := bufio.NewReader(os.Stdin).ReadString('\n')
	if readErr != nil && !errors.Is(readErr, os.ErrClosed) {
		return nil, readErr
	}
	line = strings.TrimSpace(line)

	code, gotState, parseErr := extractCodeAndState(line)
	if parseErr != nil {
		return nil, parseErr
	}
	if gotState != "" && gotState != state {
		return nil, errors.New("state mismatch")
	}

	return p.exchange(ctx, cfg, code)
}

// authorizeLoopback opens a browser against a short-lived localhost callback.
func (p *Provider) authorizeLoopback(ctx context.Context, state string, forceConsent bool) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/oauth2/callback", port)
	cfg := p.oauthConfig(redirectURI)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/oauth2/callback" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			if authErr := q.Get("error"); authErr != "" {
				select {
				case errCh <- callbackError(authErr):
				default:
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("Authorization cancelled. You can close this window."))
				return
			}
			if q.Get("state") != state {
				select {
				case errCh <- errors.New("state mismatch"):
				default:
				}
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte("State mismatch. You can close this window."))
				return
			}
			code := q.Get("code")
			if code == "" {
				select {
				case errCh <- errors.New("missing code"):
				default:
				}
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte("Missing code. You can close this window."))
				return
			}
			select {
			case codeCh <- code:
			default:
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Success! You can close this window."))
		}),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case errCh <- serveErr:
			default:
			}
		}
	}()

	authURL := cfg.AuthCodeURL(state, authURLParams(forceConsent)...)
	fmt.Fprintln(os.Stderr, "Opening browser for authorization…")
	fmt.Fprintln(os.Stderr, "If the browser doesn't open, visit this URL:")
	fmt.Fprintln(os.Stderr, authURL)
	_ = openBrowser(authURL)

	select {
	case code := <-codeCh:
		_ = srv.Close()
		return p.exchange(ctx, cfg, code)
	case flowErr := <-errCh:
		_ = srv.Close()
		return nil, flowErr
	case <-ctx.Done():
		_ = srv.Close()
		return nil, ctx.Err()
	}
}

func (p *Provider) exchange(ctx context.Context, cfg oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("no refresh token received; try again with --force-consent")
	}
	return tok, nil
}

// callbackError maps OAuth error codes to errDeclined where the user simply
// said no.
func callbackError(code string) error {
	if code == "access_denied" || code == "consent_required" {
		return fmt.Errorf("%w: %s", errDeclined, code)
	}
	return fmt.Errorf("authorization error: %s", code)
}

func authURLParams(forceConsent bool) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if forceConsent {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "consent"))
	}
	return opts
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func extractCodeAndState(rawURL string) (code string, state string, err error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	q := parsed.Query()
	code = q.Get("code")
	if code == "" {
		return "", "", errors.New("no code found in URL")
	}
	return code, q.Get("state"), nil
}
