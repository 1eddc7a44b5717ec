package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDataDir returns the default directory holding session tubs. It
// honours XDG_DATA_HOME and otherwise uses ~/mycar, falling back to ./data
// when no home directory is known.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mycar")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}
	return filepath.Join(homeDir, "mycar")
}

// ExpandUser replaces a leading ~ with the user's home directory.
func ExpandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
