package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir returns the per-user data directory for the embedded
// backend: $XDG_DATA_HOME/docq when set, else the platform's usual location.
// Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	return dataDirFor(runtime.GOOS, os.Getenv)
}

func dataDirFor(goos string, getenv func(string) string) string {
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "docq")
	}
	if goos == "windows" {
		if local := getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "docq")
		}
	}
	home := getenv("HOME")
	if goos == "windows" && home == "" {
		home = getenv("USERPROFILE")
	}
	if home == "" {
		return filepath.Join(".", "data")
	}
	switch goos {
	case "darwin", "ios":
		return filepath.Join(home, "Library", "Application Support", "docq")
	case "windows":
		return filepath.Join(home, "AppData", "Local", "docq")
	default:
		return filepath.Join(home, ".local", "share", "docq")
	}
}
