package cmd

import (
	"io"
	"os"
	"strings"
	"testing"
)

// testEnv points every path at a temp dir so commands run hermetically.
func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTIT_CONFIG_DIR", t.TempDir())
	t.Setenv("POSTIT_KEYRING_BACKEND", "file")
	t.Setenv("POSTIT_CLIENT_ID", "test-client")
	t.Setenv("POSTIT_CLIENT_SECRET", "test-secret")
	t.Setenv("POSTIT_COLOR", "never")
	t.Setenv("POSTIT_OUTPUT", "")
}

// runCLI executes the command line and captures stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	execErr := Execute(args)

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}

	return string(out), execErr
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "nope-nope-nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ExitCode(err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}

func TestLsEmptyStore(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "no notes") {
		t.Fatalf("output = %q", out)
	}
}

func TestStatusNotSignedIn(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "not signed in") {
		t.Fatalf("output = %q", out)
	}
}

func TestStatusJSON(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	if !strings.Contains(out, `"connected": false`) {
		t.Fatalf("output = %q", out)
	}
}

func TestOutputEnvSwitchesToJSON(t *testing.T) {
	testEnv(t)
	t.Setenv("POSTIT_OUTPUT", "json")

	out, err := runCLI(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, `"connected": false`) {
		t.Fatalf("output = %q, want JSON", out)
	}
}

func TestSyncWithoutCredentialExitsAuth(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "sync")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ExitCode(err); got != exitAuth {
		t.Fatalf("exit code = %d, want %d", got, exitAuth)
	}
}

func TestWhoamiWithoutCredentialExitsAuth(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "whoami")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ExitCode(err); got != exitAuth {
		t.Fatalf("exit code = %d, want %d", got, exitAuth)
	}
}

func TestWipeBackupRequiresForce(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "wipe-backup")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ExitCode(err); got != exitUsage {
		t.Fatalf("exit code = %d, want %d", got, exitUsage)
	}
}
