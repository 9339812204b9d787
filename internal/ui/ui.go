// Package ui owns terminal output: colorized text on stdout, diagnostics on
// stderr. Commands never write to os.Stdout directly.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// UI writes user-facing output.
type UI struct {
	stdout io.Writer
	stderr io.Writer
	color  bool

	success *color.Color
	warn    *color.Color
	errc    *color.Color
	muted   *color.Color
}

// Options configures a UI. Color is "auto", "always", or "never".
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Color  string
}

// New builds a UI. Unset writers default to the process streams.
func New(opts Options) (*UI, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var useColor bool
	switch opts.Color {
	case "", "auto":
		useColor = isTerminal(opts.Stdout) && os.Getenv("NO_COLOR") == ""
	case "always":
		useColor = true
	case "never":
		useColor = false
	default:
		return nil, fmt.Errorf("invalid --color %q (expected auto|always|never)", opts.Color)
	}

	u := &UI{
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		color:   useColor,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		errc:    color.New(color.FgRed),
		muted:   color.New(color.Faint),
	}
	if !useColor {
		for _, c := range []*color.Color{u.success, u.warn, u.errc, u.muted} {
			c.DisableColor()
		}
	}

	return u, nil
}

// Stdout returns the output stream, for raw writes (JSON output).
func (u *UI) Stdout() io.Writer {
	return u.stdout
}

// Out prints a line to stdout.
func (u *UI) Out(format string, args ...any) {
	fmt.Fprintf(u.stdout, format+"\n", args...)
}

// Success prints a green line to stdout.
func (u *UI) Success(format string, args ...any) {
	u.success.Fprintf(u.stdout, format+"\n", args...)
}

// Muted prints a faint line to stdout.
func (u *UI) Muted(format string, args ...any) {
	u.muted.Fprintf(u.stdout, format+"\n", args...)
}

// Warn prints a yellow line to stderr.
func (u *UI) Warn(format string, args ...any) {
	u.warn.Fprintf(u.stderr, format+"\n", args...)
}

// Err prints a red line to stderr.
func (u *UI) Err(format string, args ...any) {
	u.errc.Fprintf(u.stderr, format+"\n", args...)
}

// Swatch renders a colored marker for a note color, or the name when colors
// are off.
func (u *UI) Swatch(name string) string {
	if !u.color {
		return name
	}

	var c *color.Color
	switch name {
	case "yellow":
		c = color.New(color.FgYellow)
	case "pink":
		c = color.New(color.FgMagenta)
	case "blue":
		c = color.New(color.FgBlue)
	case "green":
		c = color.New(color.FgGreen)
	case "orange":
		c = color.New(color.FgRed, color.Faint)
	case "purple":
		c = color.New(color.FgMagenta, color.Bold)
	default:
		return name
	}

	return c.Sprint("■ " + name)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type ctxKey struct{}

// WithUI attaches a UI to the context.
func WithUI(ctx context.Context, u *UI) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the attached UI, or a plain default.
func FromContext(ctx context.Context) *UI {
	if v := ctx.Value(ctxKey{}); v != nil {
		if u, ok := v.(*UI); ok {
			return u
		}
	}
	u, _ := New(Options{Color: "never"})
	return u
}
