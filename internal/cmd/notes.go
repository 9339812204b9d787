package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/note"
	"github.com/polaco8525/postit/internal/outfmt"
	"github.com/polaco8525/postit/internal/ui"
)

type AddCmd struct {
	Text   string  `arg:"" help:"Note text"`
	Color  string  `help:"Note color: yellow|pink|blue|green|orange|purple" default:"yellow"`
	X      float64 `help:"Horizontal position (default: random)" default:"-1"`
	Y      float64 `help:"Vertical position (default: random)" default:"-1"`
	Width  float64 `help:"Note width" default:"0"`
	Height float64 `help:"Note height" default:"0"`
}

func (c *AddCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	color, err := note.ParseColor(c.Color)
	if err != nil {
		return newUsageError(err)
	}

	// Unset dimensions take the note default, not the clamp minimum.
	size := note.Size{Width: c.Width, Height: c.Height}
	if size.Width == 0 && size.Height == 0 {
		size = note.Size{Width: note.DefaultWidth, Height: note.DefaultHeight}
	}
	size = note.ClampSize(size)

	pos := note.Position{X: c.X, Y: c.Y}
	if c.X < 0 || c.Y < 0 {
		pos = note.RandomPosition(a.cfg.CanvasWidth, a.cfg.CanvasHeight, size)
	}

	col := note.NewCollection(a.store.LoadNotes())
	n := note.Create(c.Text, color, pos, col.MaxZIndex+1, size)
	col.Upsert(n)
	a.store.SaveNotes(col.Sorted())

	if outfmt.IsJSON(ctx) {
		return emitJSON(ctx, flags, n)
	}

	ui.FromContext(ctx).Success("created note %s", shortID(n.ID))
	return nil
}

type LsCmd struct{}

func (c *LsCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	notes := note.NewCollection(a.store.LoadNotes()).Sorted()

	if outfmt.IsJSON(ctx) {
		return emitJSON(ctx, flags, map[string]any{"notes": notes})
	}

	u := ui.FromContext(ctx)
	if len(notes) == 0 {
		u.Muted("no notes")
		return nil
	}

	for _, n := range notes {
		u.Out("%s  %s  %s", shortID(n.ID), u.Swatch(string(n.Color)), firstLine(n.Text))
	}
	return nil
}

type EditCmd struct {
	ID   string `arg:"" help:"Note id (prefix ok)"`
	Text string `arg:"" help:"New text"`
}

func (c *EditCmd) Run(ctx context.Context, log *zap.Logger) error {
	return mutateNote(ctx, log, c.ID, func(n *note.Note) error {
		n.Text = c.Text
		return nil
	})
}

type MvCmd struct {
	ID string  `arg:"" help:"Note id (prefix ok)"`
	X  float64 `arg:"" help:"New horizontal position"`
	Y  float64 `arg:"" help:"New vertical position"`
}

func (c *MvCmd) Run(ctx context.Context, log *zap.Logger) error {
	return mutateNoteWith(ctx, log, c.ID, func(a *app, n *note.Note) error {
		n.Position = note.ClampPosition(note.Position{X: c.X, Y: c.Y}, n.Size, a.cfg.CanvasWidth, a.cfg.CanvasHeight)
		return nil
	})
}

type ResizeCmd struct {
	ID     string  `arg:"" help:"Note id (prefix ok)"`
	Width  float64 `arg:"" help:"New width"`
	Height float64 `arg:"" help:"New height"`
}

func (c *ResizeCmd) Run(ctx context.Context, log *zap.Logger) error {
	return mutateNote(ctx, log, c.ID, func(n *note.Note) error {
		n.Size = note.ClampSize(note.Size{Width: c.Width, Height: c.Height})
		return nil
	})
}

type PaintCmd struct {
	ID    string `arg:"" help:"Note id (prefix ok)"`
	Color string `arg:"" help:"New color: yellow|pink|blue|green|orange|purple"`
}

func (c *PaintCmd) Run(ctx context.Context, log *zap.Logger) error {
	return mutateNote(ctx, log, c.ID, func(n *note.Note) error {
		color, err := note.ParseColor(c.Color)
		if err != nil {
			return newUsageError(err)
		}
		n.Color = color
		return nil
	})
}

type FrontCmd struct {
	ID string `arg:"" help:"Note id (prefix ok)"`
}

func (c *FrontCmd) Run(ctx context.Context, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	col := note.NewCollection(a.store.LoadNotes())
	n, err := findNote(col, c.ID)
	if err != nil {
		return err
	}

	col.BringToFront(n.ID)
	a.store.SaveNotes(col.Sorted())

	ui.FromContext(ctx).Out("note %s brought to front", shortID(n.ID))
	return nil
}

type RmCmd struct {
	ID string `arg:"" help:"Note id (prefix ok)"`
}

func (c *RmCmd) Run(ctx context.Context, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	col := note.NewCollection(a.store.LoadNotes())
	n, err := findNote(col, c.ID)
	if err != nil {
		return err
	}

	col.Delete(n.ID)
	a.store.SaveNotes(col.Sorted())

	u := ui.FromContext(ctx)
	u.Out("deleted note %s", shortID(n.ID))
	u.Warn("deletion is local only; the note returns on the next sync unless the backup is replaced with 'postit push'")
	return nil
}

// mutateNote applies fn to one note, touches its timestamp, and persists.
func mutateNote(ctx context.Context, log *zap.Logger, id string, fn func(*note.Note) error) error {
	return mutateNoteWith(ctx, log, id, func(_ *app, n *note.Note) error {
		return fn(n)
	})
}

func mutateNoteWith(ctx context.Context, log *zap.Logger, id string, fn func(*app, *note.Note) error) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	col := note.NewCollection(a.store.LoadNotes())
	n, err := findNote(col, id)
	if err != nil {
		return err
	}

	if err := fn(a, &n); err != nil {
		return err
	}
	n.Touch()
	col.Upsert(n)
	a.store.SaveNotes(col.Sorted())

	ui.FromContext(ctx).Out("updated note %s", shortID(n.ID))
	return nil
}

// findNote resolves an id or unique id prefix.
func findNote(col *note.Collection, id string) (note.Note, error) {
	if n, ok := col.Get(id); ok {
		return n, nil
	}

	var matches []note.Note
	for _, n := range col.Sorted() {
		if strings.HasPrefix(n.ID, id) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return note.Note{}, newUsageError(fmt.Errorf("no note matches %q", id))
	default:
		return note.Note{}, newUsageError(fmt.Errorf("%q is ambiguous (%d matches)", id, len(matches)))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "…"
	}
	return s
}
