package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.recap.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".recap")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// EngineDBPath returns the whatsmeow session.db path.
func EngineDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// MirrorDBPath returns the chat mirror database path.
func MirrorDBPath(name string) string {
	return filepath.Join(Dir(name), "mirror.db")
}

// HistoryDBPath returns the summary history database path.
func HistoryDBPath(name string) string {
	return filepath.Join(Dir(name), "history.db")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "recapd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
