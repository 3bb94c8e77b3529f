package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wppview.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppview")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the backend daemon's UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "backend.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CacheDBPath returns the client-owned cache.db path.
func CacheDBPath(name string) string {
	return filepath.Join(Dir(name), "cache.db")
}

// MediaDir returns the media blob directory for a session.
func MediaDir(name string) string {
	return filepath.Join(Dir(name), "media")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the client log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wppview.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		MediaDir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
