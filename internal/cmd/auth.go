package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/config"
	"github.com/polaco8525/postit/internal/googleauth"
	"github.com/polaco8525/postit/internal/outfmt"
	"github.com/polaco8525/postit/internal/ui"
)

type LoginCmd struct {
	Manual       bool          `help:"Paste the redirect URL instead of running a local callback server"`
	ForceConsent bool          `name:"force-consent" help:"Force the consent screen (use when no refresh token is returned)"`
	Timeout      time.Duration `help:"How long to wait for the browser flow" default:"2m"`
}

func (c *LoginCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.sync.SignIn(ctx, googleauth.SignInOptions{
		Manual:       c.Manual,
		ForceConsent: c.ForceConsent,
		Timeout:      c.Timeout,
	})
	if err != nil {
		return err
	}

	u := ui.FromContext(ctx)
	if identity == nil {
		u.Warn("sign-in cancelled")
		return nil
	}

	if outfmt.IsJSON(ctx) {
		return emitJSON(ctx, flags, identity)
	}

	u.Success("signed in as %s (%s)", identity.DisplayName, identity.Email)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.sync.SignOut(); err != nil {
		return err
	}

	ui.FromContext(ctx).Out("signed out")
	return nil
}

type RevokeCmd struct{}

func (c *RevokeCmd) Run(ctx context.Context, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.auth.Revoke(ctx); err != nil {
		return err
	}

	ui.FromContext(ctx).Out("grant revoked and signed out")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.auth.SignInSilently(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		return &googleauth.AuthenticationError{Cause: fmt.Errorf("not signed in; run 'postit login'")}
	}

	if outfmt.IsJSON(ctx) {
		return emitJSON(ctx, flags, identity)
	}

	u := ui.FromContext(ctx)
	u.Out("%s <%s>", identity.DisplayName, identity.Email)
	return nil
}

type CredentialsCmd struct {
	File string `arg:"" help:"Path to the OAuth client credentials JSON (installed or web client)" type:"existingfile"`
}

func (c *CredentialsCmd) Run(ctx context.Context) error {
	body, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read credentials file: %w", err)
	}

	creds, err := config.ParseGoogleOAuthClientJSON(body)
	if err != nil {
		return newUsageError(err)
	}

	if err := config.WriteClientCredentials(creds); err != nil {
		return err
	}

	ui.FromContext(ctx).Success("credentials stored")
	return nil
}
