package note

import "sort"

// Collection maps note ids to notes and tracks the derived stacking maximum.
// SelectedID is UI-local state and never leaves the process.
type Collection struct {
	Notes      map[string]Note
	MaxZIndex  int64
	SelectedID string
}

// NewCollection builds a collection from a slice, deriving MaxZIndex.
func NewCollection(notes []Note) *Collection {
	c := &Collection{Notes: make(map[string]Note, len(notes))}
	for _, n := range notes {
		c.Notes[n.ID] = n
		if n.ZIndex > c.MaxZIndex {
			c.MaxZIndex = n.ZIndex
		}
	}
	return c
}

// Len returns the number of notes.
func (c *Collection) Len() int {
	return len(c.Notes)
}

// Get returns the note with the given id.
func (c *Collection) Get(id string) (Note, bool) {
	n, ok := c.Notes[id]
	return n, ok
}

// Upsert inserts or replaces a note and keeps MaxZIndex current.
func (c *Collection) Upsert(n Note) {
	c.Notes[n.ID] = n
	if n.ZIndex > c.MaxZIndex {
		c.MaxZIndex = n.ZIndex
	}
}

// Delete removes a note and re-derives MaxZIndex.
func (c *Collection) Delete(id string) {
	if _, ok := c.Notes[id]; !ok {
		return
	}
	delete(c.Notes, id)
	if c.SelectedID == id {
		c.SelectedID = ""
	}
	c.MaxZIndex = 0
	for _, n := range c.Notes {
		if n.ZIndex > c.MaxZIndex {
			c.MaxZIndex = n.ZIndex
		}
	}
}

// BringToFront bumps the note above every other note and stamps it modified.
func (c *Collection) BringToFront(id string) bool {
	n, ok := c.Notes[id]
	if !ok {
		return false
	}
	c.MaxZIndex++
	n.ZIndex = c.MaxZIndex
	n.Touch()
	c.Notes[id] = n
	return true
}

// Replace swaps in a whole new set of notes, preserving SelectedID when the
// selected note survives. This is the single mutation path merged sync
// results flow through.
func (c *Collection) Replace(notes []Note) {
	selected := c.SelectedID
	next := NewCollection(notes)
	c.Notes = next.Notes
	c.MaxZIndex = next.MaxZIndex
	if _, ok := c.Notes[selected]; ok {
		c.SelectedID = selected
	} else {
		c.SelectedID = ""
	}
}

// Sorted returns the notes ordered by zIndex, then id for stability.
func (c *Collection) Sorted() []Note {
	out := make([]Note, 0, len(c.Notes))
	for _, n := range c.Notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortByID orders notes by id in place and returns the slice. Snapshot
// payloads use this so repeated uploads of the same collection are
// byte-identical.
func SortByID(notes []Note) []Note {
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}
