package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// isolate points HOME at an empty directory and clears the config env.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, envPrefix) {
			t.Setenv(name, "")
		}
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadHomeFileThenEnv(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, DefaultFileName), `
server: http://st.local:3000
user: operator
settleDelay: 250ms
skipBookmarks: true
`)
	t.Setenv("MISSION_UPLOADER_SERVER", "https://st.example.com")
	t.Setenv("MISSION_UPLOADER_CONNECT_TIMEOUT", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Defaults()
	want.Server = "https://st.example.com"
	want.User = "operator"
	want.SettleDelay = 250 * time.Millisecond
	want.ConnectTimeout = 5 * time.Second
	want.SkipBookmarks = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "uploader.yaml")
	writeFile(t, path, "input: missions.csv\npasswordSsmParam: /uploader/password\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Input != "missions.csv" || cfg.PasswordSSMParam != "/uploader/password" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "uploader.yaml")
	writeFile(t, path, "user: from-env-file\n")
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.User != "from-env-file" {
		t.Errorf("expected user from file, got %q", cfg.User)
	}
}

func TestLoadErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "server: [unterminated\n")

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed config file")
	}

	t.Setenv("MISSION_UPLOADER_SETTLE_DELAY", "soon")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid duration")
	}
	t.Setenv("MISSION_UPLOADER_SETTLE_DELAY", "")

	t.Setenv("MISSION_UPLOADER_NO_PROGRESS", "maybe")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid bool")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing server and user")
	}
	for _, want := range []string{"server", "user"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	cfg.Server, cfg.User = "http://localhost:3000", "operator"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.ConnectTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero connect timeout")
	}
}
