package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".recap", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "daemon.sock")) {
		t.Errorf("SocketPath(test) = %q, want suffix sessions/test/daemon.sock", got)
	}
}

func TestDBPathsAreDistinct(t *testing.T) {
	paths := map[string]string{
		"engine":  EngineDBPath("test"),
		"mirror":  MirrorDBPath("test"),
		"history": HistoryDBPath("test"),
	}
	seen := map[string]string{}
	for name, p := range paths {
		if !strings.HasPrefix(p, Dir("test")) {
			t.Errorf("%s db %q not under session dir", name, p)
		}
		if other, dup := seen[p]; dup {
			t.Errorf("%s and %s share path %q", name, other, p)
		}
		seen[p] = name
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix sessions/test/LOCK", got)
	}
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath()
	if !strings.HasSuffix(got, filepath.Join(".recap", "config.toml")) {
		t.Errorf("ConfigPath() = %q, want suffix .recap/config.toml", got)
	}
}
