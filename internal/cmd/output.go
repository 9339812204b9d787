package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/polaco8525/postit/internal/outfmt"
	"github.com/polaco8525/postit/internal/ui"
)

// emitJSON writes v as JSON to stdout, through --jq when set.
func emitJSON(ctx context.Context, flags *RootFlags, v any) error {
	u := ui.FromContext(ctx)

	var buf bytes.Buffer
	if err := outfmt.WriteJSON(&buf, v); err != nil {
		return err
	}

	if flags.JQ != "" {
		out, err := outfmt.ApplyJQ(buf.Bytes(), flags.JQ)
		if err != nil {
			return newUsageError(err)
		}
		if len(out) > 0 {
			fmt.Fprintln(u.Stdout(), string(out))
		}
		return nil
	}

	_, err := u.Stdout().Write(buf.Bytes())
	return err
}
