// Package cmd implements the postit command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/polaco8525/postit/internal/outfmt"
	"github.com/polaco8525/postit/internal/ui"
)

type RootFlags struct {
	Color   string `help:"Color output: auto|always|never" default:"${color}"`
	JSON    bool   `help:"Output JSON to stdout (best for scripting)" short:"j"`
	JQ      string `name:"jq" help:"Apply jq expression to JSON output"`
	Verbose bool   `help:"Enable verbose logging" short:"v"`
}

type CLI struct {
	Login       LoginCmd       `cmd:"" help:"Sign in with Google"`
	Logout      LogoutCmd      `cmd:"" help:"Sign out (keep server-side grant)"`
	Revoke      RevokeCmd      `cmd:"" help:"Revoke the grant and sign out"`
	Whoami      WhoamiCmd      `cmd:"" aliases:"me" help:"Show the signed-in account"`
	Credentials CredentialsCmd `cmd:"" aliases:"creds" help:"Store an OAuth client credentials file"`

	Add    AddCmd    `cmd:"" help:"Create a note"`
	Ls     LsCmd     `cmd:"" aliases:"list" help:"List notes"`
	Edit   EditCmd   `cmd:"" help:"Change a note's text"`
	Mv     MvCmd     `cmd:"" aliases:"move" help:"Move a note"`
	Resize ResizeCmd `cmd:"" help:"Resize a note"`
	Paint  PaintCmd  `cmd:"" aliases:"color" help:"Change a note's color"`
	Front  FrontCmd  `cmd:"" help:"Bring a note to the front"`
	Rm     RmCmd     `cmd:"" aliases:"remove,delete" help:"Delete a note locally"`

	Sync       SyncCmd       `cmd:"" help:"Merge with the remote backup"`
	Push       PushCmd       `cmd:"" aliases:"upload" help:"Replace the remote backup with local notes"`
	Pull       PullCmd       `cmd:"" aliases:"download" help:"Replace local notes with the remote backup"`
	WipeBackup WipeBackupCmd `cmd:"" name:"wipe-backup" help:"Delete the remote backup"`
	Status     StatusCmd     `cmd:"" aliases:"st" help:"Show sync status"`
	Auto       AutoCmd       `cmd:"" help:"Enable or disable automatic sync"`
	Log        LogCmd        `cmd:"" help:"Show recent sync activity"`

	Watch WatchCmd `cmd:"" help:"Watch the local database and sync on change"`

	// Declared after the commands so kong registers each command's flags
	// before the root flags; AddCmd's --color and the root --color can
	// then coexist without tripping kong's duplicate-flag check.
	RootFlags `embed:""`

	Version kong.VersionFlag `help:"Print version and exit"`
}

type exitPanic struct{ code int }

func Execute(args []string) (err error) {
	parser, cli, err := newParser()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if ep, ok := r.(exitPanic); ok {
				if ep.code == 0 {
					err = nil
					return
				}
				err = &ExitError{Code: ep.code, Err: errors.New("exited")}
				return
			}
			panic(r)
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		parsedErr := wrapParseError(err)
		fmt.Fprintln(os.Stderr, "error: "+parsedErr.Error())
		return parsedErr
	}

	// POSTIT_OUTPUT=json flips the default for scripted environments; the
	// flags still win.
	if !cli.JSON {
		if mode, err := outfmt.Parse(os.Getenv("POSTIT_OUTPUT")); err == nil && mode == outfmt.ModeJSON {
			cli.JSON = true
		}
	}

	// --jq implies JSON so the expression has something to chew on.
	if cli.JQ != "" {
		cli.JSON = true
	}

	logger := newLogger(cli.Verbose)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	mode := outfmt.ModeText
	if cli.JSON {
		mode = outfmt.ModeJSON
	}
	ctx = outfmt.WithMode(ctx, mode)

	uiColor := cli.Color
	if cli.JSON {
		uiColor = "never"
	}
	u, err := ui.New(ui.Options{Stdout: os.Stdout, Stderr: os.Stderr, Color: uiColor})
	if err != nil {
		return newUsageError(err)
	}
	ctx = ui.WithUI(ctx, u)

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(&cli.RootFlags)
	kctx.Bind(logger)

	err = kctx.Run()
	if err == nil {
		return nil
	}
	if ExitCode(err) == 0 {
		return nil
	}
	err = stableExitCode(err)

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		u.Err("error: %s", msg)
	}

	return err
}

func newParser() (*kong.Kong, *CLI, error) {
	vars := kong.Vars{
		"color":   envOr("POSTIT_COLOR", "auto"),
		"version": VersionString(),
	}

	cli := &CLI{}
	parser, err := kong.New(
		cli,
		kong.Name("postit"),
		kong.Description("Sticky notes with Google Drive backup"),
		kong.Vars(vars),
		kong.Writers(os.Stdout, os.Stderr),
		kong.Exit(func(code int) { panic(exitPanic{code: code}) }),
	)
	if err != nil {
		return nil, nil, err
	}
	return parser, cli, nil
}

// newLogger builds the stderr logger. Verbose shows debug output; the
// default stays quiet so command output remains parseable.
func newLogger(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func wrapParseError(err error) error {
	if err == nil {
		return nil
	}
	var parseErr *kong.ParseError
	if errors.As(err, &parseErr) {
		return &ExitError{Code: exitUsage, Err: parseErr}
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
