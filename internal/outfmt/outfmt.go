// Package outfmt decides how command results reach stdout: human-readable
// text (the default) or JSON for scripting. The chosen mode rides the
// context so note and sync commands do not thread a flag through every call.
package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Mode is an output mode.
type Mode string

const (
	// ModeText prints colorized, line-oriented output for people.
	ModeText Mode = "text"
	// ModeJSON prints one indented JSON document for machines.
	ModeJSON Mode = "json"
)

// Parse normalizes a user-supplied mode name. The empty string means text.
func Parse(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeText:
		return ModeText, nil
	case ModeJSON:
		return ModeJSON, nil
	}
	return "", fmt.Errorf("unknown output mode %q (expected text or json)", s)
}

type modeKey struct{}

// WithMode attaches the output mode to the context.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// IsJSON reports whether the context asks for JSON output. Absence of a
// mode means text.
func IsJSON(ctx context.Context) bool {
	mode, ok := ctx.Value(modeKey{}).(Mode)
	return ok && mode == ModeJSON
}

// WriteJSON writes v as indented JSON. HTML escaping stays off so note text
// and avatar URLs survive a shell pipeline untouched.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
