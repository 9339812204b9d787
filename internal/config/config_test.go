package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseGoogleOAuthClientJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ClientCredentials
		wantErr bool
	}{
		{
			name:  "installed wrapper",
			input: `{"installed":{"client_id":"id1","client_secret":"s1"}}`,
			want:  ClientCredentials{ClientID: "id1", ClientSecret: "s1"},
		},
		{
			name:  "web wrapper",
			input: `{"web":{"client_id":"id2","client_secret":"s2"}}`,
			want:  ClientCredentials{ClientID: "id2", ClientSecret: "s2"},
		},
		{
			name:  "flattened",
			input: `{"client_id":"id3","client_secret":"s3"}`,
			want:  ClientCredentials{ClientID: "id3", ClientSecret: "s3"},
		},
		{
			name:    "missing secret",
			input:   `{"installed":{"client_id":"id4"}}`,
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   `nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGoogleOAuthClientJSON([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}

				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)

				return
			}

			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	t.Setenv("POSTIT_CONFIG_DIR", t.TempDir())

	want := ClientCredentials{ClientID: "abc", ClientSecret: "xyz"}
	if err := WriteClientCredentials(want); err != nil {
		t.Fatalf("WriteClientCredentials: %v", err)
	}

	got, err := ReadClientCredentials()
	if err != nil {
		t.Fatalf("ReadClientCredentials: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReadClientCredentialsEnvFallback(t *testing.T) {
	t.Setenv("POSTIT_CONFIG_DIR", t.TempDir())
	t.Setenv("POSTIT_CLIENT_ID", "env-id")
	t.Setenv("POSTIT_CLIENT_SECRET", "env-secret")

	got, err := ReadClientCredentials()
	if err != nil {
		t.Fatalf("ReadClientCredentials: %v", err)
	}
	if got.ClientID != "env-id" || got.ClientSecret != "env-secret" {
		t.Fatalf("unexpected credentials: %+v", got)
	}
}

func TestReadConfigDefaultsWhenMissing(t *testing.T) {
	t.Setenv("POSTIT_CONFIG_DIR", t.TempDir())

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if !cfg.AutoSync {
		t.Error("expected auto_sync default true")
	}
	if cfg.Debounce() != DefaultDebounce {
		t.Errorf("Debounce = %v, want %v", cfg.Debounce(), DefaultDebounce)
	}
	if cfg.CanvasWidth != DefaultCanvasWidth || cfg.CanvasHeight != DefaultCanvasHeight {
		t.Errorf("unexpected canvas defaults: %+v", cfg)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("POSTIT_CONFIG_DIR", t.TempDir())

	want := Config{AutoSync: false, DebounceSeconds: 9, CanvasWidth: 640, CanvasHeight: 480}
	if err := WriteConfig(want); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	got, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReadConfigPartialFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POSTIT_CONFIG_DIR", dir)

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("auto_sync: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got.AutoSync {
		t.Error("expected auto_sync false")
	}
	if got.CanvasWidth != DefaultCanvasWidth {
		t.Errorf("CanvasWidth = %v, want default", got.CanvasWidth)
	}
}
