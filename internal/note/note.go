// Package note defines the post-it note model: the unit of local editing,
// remote backup, and merge.
package note

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dimension limits for a note, in logical canvas units.
const (
	MinDimension = 100
	MaxDimension = 400
)

// Default size for newly created notes.
const (
	DefaultWidth  = 200
	DefaultHeight = 200
)

var ErrUnknownColor = errors.New("unknown color")

// Color is one of the fixed note palette values.
type Color string

const (
	ColorYellow Color = "yellow"
	ColorPink   Color = "pink"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorPurple Color = "purple"
)

// Palette lists every valid color, in display order.
func Palette() []Color {
	return []Color{ColorYellow, ColorPink, ColorBlue, ColorGreen, ColorOrange, ColorPurple}
}

// ParseColor normalizes and validates a color name.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ColorYellow, ColorPink, ColorBlue, ColorGreen, ColorOrange, ColorPurple:
		return c, nil
	case "":
		return ColorYellow, nil
	}
	return "", fmt.Errorf("%w %q (known: yellow, pink, blue, green, orange, purple)", ErrUnknownColor, s)
}

// Size is a note's width and height.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position is a note's offset on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Note is the user-visible sticky-note record. Timestamps are epoch
// milliseconds. ID and CreatedAt are immutable after creation; every other
// field mutation must advance UpdatedAt.
type Note struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Color     Color    `json:"color"`
	Size      Size     `json:"size"`
	Position  Position `json:"position"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	ZIndex    int64    `json:"zIndex"`
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Create builds a fresh note with a unique id and createdAt == updatedAt.
// A zero size falls back to the default dimensions; all inputs are clamped,
// never rejected.
func Create(text string, color Color, pos Position, zIndex int64, size Size) Note {
	if size.Width == 0 && size.Height == 0 {
		size = Size{Width: DefaultWidth, Height: DefaultHeight}
	}
	now := NowMillis()
	return Note{
		ID:        uuid.NewString(),
		Text:      text,
		Color:     color,
		Size:      ClampSize(size),
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
		ZIndex:    zIndex,
	}
}

// Touch stamps the note as modified now. UpdatedAt never moves backwards.
func (n *Note) Touch() {
	now := NowMillis()
	if now <= n.UpdatedAt {
		now = n.UpdatedAt + 1
	}
	n.UpdatedAt = now
}

// ClampSize forces both dimensions into [MinDimension, MaxDimension].
func ClampSize(s Size) Size {
	return Size{
		Width:  clamp(s.Width, MinDimension, MaxDimension),
		Height: clamp(s.Height, MinDimension, MaxDimension),
	}
}

// ClampPosition keeps a note of the given size fully inside the container.
// Containers smaller than the note pin the position to the origin.
func ClampPosition(p Position, s Size, containerWidth, containerHeight float64) Position {
	maxX := containerWidth - s.Width
	if maxX < 0 {
		maxX = 0
	}
	maxY := containerHeight - s.Height
	if maxY < 0 {
		maxY = 0
	}
	return Position{
		X: clamp(p.X, 0, maxX),
		Y: clamp(p.Y, 0, maxY),
	}
}

// RandomPosition picks a placement for a new note, biased 10-20 units away
// from the container edges. Overlap with existing notes is accepted.
func RandomPosition(containerWidth, containerHeight float64, s Size) Position {
	margin := 10 + rand.Float64()*10
	spanX := containerWidth - s.Width - 2*margin
	spanY := containerHeight - s.Height - 2*margin
	p := Position{X: margin, Y: margin}
	if spanX > 0 {
		p.X = margin + rand.Float64()*spanX
	}
	if spanY > 0 {
		p.Y = margin + rand.Float64()*spanY
	}
	return ClampPosition(p, s, containerWidth, containerHeight)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
