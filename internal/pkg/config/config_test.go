package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: pulse-test\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "pulse-test" {
		t.Fatalf("file value not applied: %q", cfg.App.Name)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:8765" {
		t.Fatalf("unexpected listen addr: %q", cfg.Server.ListenAddr)
	}
	if cfg.Wellness.DefaultAge != 18 || cfg.Wellness.BackfillMaxDays != 366 || cfg.Wellness.BackfillWorkers != 4 {
		t.Fatalf("unexpected wellness defaults: %+v", cfg.Wellness)
	}
	if len(cfg.Playthrough.CompletionistTypes) != 2 {
		t.Fatalf("unexpected completionist types: %v", cfg.Playthrough.CompletionistTypes)
	}
	if !filepath.IsAbs(cfg.Storage.DBPath) {
		t.Fatalf("db path should be resolved: %q", cfg.Storage.DBPath)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_addr: 127.0.0.1:1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PULSE_SERVER_LISTEN_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9999" {
		t.Fatalf("env override not applied: %q", cfg.Server.ListenAddr)
	}
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("wellness:\n  timezone: Mars/Olympus\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Wellness.Timezone = "UTC"
	cfg.Playthrough.CompletionistTypes = []string{"platinum"}

	if err := WriteFile(path, cfg); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	loc, err := got.Wellness.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("timezone not persisted: %v %v", loc, err)
	}
	if len(got.Playthrough.CompletionistTypes) != 1 || got.Playthrough.CompletionistTypes[0] != "platinum" {
		t.Fatalf("types not persisted: %v", got.Playthrough.CompletionistTypes)
	}

	wrote, err := WriteDefaultIfMissing(path)
	if err != nil || wrote {
		t.Fatalf("existing file must not be overwritten: wrote=%v err=%v", wrote, err)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unexpected level parsing")
	}
}
