// Package merge reconciles two note collections into one using per-note
// modification timestamps (last writer wins).
package merge

import (
	"github.com/polaco8525/postit/internal/note"
)

// Merge combines local and remote notes and reports how many conflicting
// records were resolved. The rules, in order:
//
//  1. every remote note is kept unless displaced,
//  2. a local-only note is added,
//  3. when both sides carry an id, the newer updatedAt wins; exact ties go
//     to remote. The tie-break is deliberate: Merge is not commutative.
//
// Deletions are not modeled: a note removed on one side but present on the
// other survives the merge. Output is id-sorted so repeated merges of the
// same inputs marshal identically.
func Merge(local, remote []note.Note) ([]note.Note, int) {
	merged := make(map[string]note.Note, len(remote)+len(local))
	for _, n := range remote {
		merged[n.ID] = n
	}

	conflicts := 0
	for _, n := range local {
		current, ok := merged[n.ID]
		if !ok {
			merged[n.ID] = n
			continue
		}
		if n != current {
			conflicts++
		}
		if n.UpdatedAt > current.UpdatedAt {
			merged[n.ID] = n
		}
	}

	out := make([]note.Note, 0, len(merged))
	for _, n := range merged {
		out = append(out, n)
	}
	return note.SortByID(out), conflicts
}
