package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Summarizer.RetryAttempts = 5
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Summarizer.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", loaded.Summarizer.RetryAttempts)
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for a missing file", err)
	}
	if cfg.Summarizer.RequestTimeoutSecs != 120 {
		t.Errorf("RequestTimeoutSecs = %d, want 120", cfg.Summarizer.RequestTimeoutSecs)
	}
	if cfg.Summarizer.GroupMemberThreshold != 50 {
		t.Errorf("GroupMemberThreshold = %d, want 50", cfg.Summarizer.GroupMemberThreshold)
	}
}

func TestLoadFillsUnsetFields(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	// A partial file: only the endpoint is set.
	content := "[summarizer]\nendpoint = \"https://example.test\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Summarizer.Endpoint != "https://example.test" {
		t.Errorf("Endpoint = %q", cfg.Summarizer.Endpoint)
	}
	if cfg.Summarizer.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want default 3", cfg.Summarizer.RetryAttempts)
	}
	if cfg.Summarizer.RetryDelayMillis != 2000 {
		t.Errorf("RetryDelayMillis = %d, want default 2000", cfg.Summarizer.RetryDelayMillis)
	}
	if cfg.Summarizer.MessageWindow != 50 {
		t.Errorf("MessageWindow = %d, want default 50", cfg.Summarizer.MessageWindow)
	}
	if cfg.Summarizer.LookbackDays != 7 {
		t.Errorf("LookbackDays = %d, want default 7", cfg.Summarizer.LookbackDays)
	}
}

func TestZeroRetryAttemptsIsRespected(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	// retry_attempts = 0 means "never retry", not "use the default".
	content := "[summarizer]\nretry_attempts = 0\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Summarizer.RetryAttempts != 0 {
		t.Errorf("RetryAttempts = %d, want 0", cfg.Summarizer.RetryAttempts)
	}
}

func TestDurationHelpers(t *testing.T) {
	s := Default().Summarizer
	if s.RequestTimeout() != 120*time.Second {
		t.Errorf("RequestTimeout = %v", s.RequestTimeout())
	}
	if s.RetryDelay() != 2*time.Second {
		t.Errorf("RetryDelay = %v", s.RetryDelay())
	}
	if s.Lookback() != 7*24*time.Hour {
		t.Errorf("Lookback = %v", s.Lookback())
	}
	if s.FetchTimeout() != 10*time.Second {
		t.Errorf("FetchTimeout = %v", s.FetchTimeout())
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
