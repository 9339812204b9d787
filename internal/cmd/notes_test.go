package cmd

import (
	"encoding/json"
	"strings"
	"testing"
)

func addNote(t *testing.T, text string, extra ...string) string {
	t.Helper()

	args := append([]string{"add", text, "--json"}, extra...)
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var n struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &n); err != nil {
		t.Fatalf("decode add output %q: %v", out, err)
	}
	if n.ID == "" {
		t.Fatalf("no id in %q", out)
	}
	return n.ID
}

func TestAddAndLs(t *testing.T) {
	testEnv(t)

	addNote(t, "buy milk")
	addNote(t, "call mom", "--color", "pink")

	out, err := runCLI(t, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "buy milk") || !strings.Contains(out, "call mom") {
		t.Fatalf("output = %q", out)
	}
}

func TestAddDefaultsToStandardSize(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "add", "plain", "--json")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var n struct {
		Size struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"size"`
	}
	if err := json.Unmarshal([]byte(out), &n); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if n.Size.Width != 200 || n.Size.Height != 200 {
		t.Fatalf("size = %+v, want 200x200", n.Size)
	}
}

func TestAddClampsExplicitSize(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "add", "tiny", "--json", "--width", "1", "--height", "9999")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var n struct {
		Size struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"size"`
	}
	if err := json.Unmarshal([]byte(out), &n); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if n.Size.Width != 100 || n.Size.Height != 400 {
		t.Fatalf("size = %+v, want 100x400", n.Size)
	}
}

func TestAddRejectsUnknownColor(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "add", "x", "--color", "mauve")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ExitCode(err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestEditByIDPrefix(t *testing.T) {
	testEnv(t)

	id := addNote(t, "draft")

	if _, err := runCLI(t, "edit", id[:8], "final"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	out, err := runCLI(t, "ls", "--json", "--jq", ".notes[0].text")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if strings.TrimSpace(out) != `"final"` {
		t.Fatalf("text = %q", out)
	}
}

func TestPaintAndFront(t *testing.T) {
	testEnv(t)

	first := addNote(t, "one")
	second := addNote(t, "two")

	if _, err := runCLI(t, "paint", first, "green"); err != nil {
		t.Fatalf("paint: %v", err)
	}
	if _, err := runCLI(t, "front", first); err != nil {
		t.Fatalf("front: %v", err)
	}

	// Sorted order puts the fronted note last.
	out, err := runCLI(t, "ls", "--json", "--jq", ".notes[-1].id")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, first) {
		t.Fatalf("front note should sort last, got %q (other=%s)", out, second)
	}
}

func TestRmDeletesLocally(t *testing.T) {
	testEnv(t)

	id := addNote(t, "temp")
	if _, err := runCLI(t, "rm", id); err != nil {
		t.Fatalf("rm: %v", err)
	}

	out, err := runCLI(t, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "no notes") {
		t.Fatalf("output = %q", out)
	}
}

func TestMvClampsToCanvas(t *testing.T) {
	testEnv(t)

	id := addNote(t, "runaway")
	if _, err := runCLI(t, "mv", id, "99999", "99999"); err != nil {
		t.Fatalf("mv: %v", err)
	}

	out, err := runCLI(t, "ls", "--json", "--jq", ".notes[0].position.x")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}

	var x float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &x); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if x > 10000 {
		t.Fatalf("x = %v, expected clamped position", x)
	}
}

func TestAmbiguousPrefixRejected(t *testing.T) {
	testEnv(t)

	addNote(t, "a")
	addNote(t, "b")

	_, err := runCLI(t, "edit", "", "won't happen")
	if err == nil {
		t.Fatal("expected error for empty (ambiguous) id")
	}
	if got := ExitCode(err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}
