package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveRelative joins value onto base unless it is already absolute.
func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if strings.HasPrefix(raw, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, raw[2:])
		}
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// BaseDir is the directory relative paths were resolved against.
func (c *Config) BaseDir() string {
	return c.baseDir
}

// Locate returns explicit when set, otherwise modpack.toml in dir if it
// exists, otherwise "".
func Locate(explicit, dir string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	candidate := filepath.Join(dir, DefaultFile)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}
