package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"modpack/internal/engine/archive"
	"modpack/internal/shared/version"

	"github.com/BurntSushi/toml"
)

const DefaultFile = "modpack.toml"

// Load decodes the TOML file at path, applies defaults and environment
// overrides, resolves relative paths against the file's directory and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.baseDir = base
	return finish(&cfg)
}

// Default returns the configuration used when no file is given. Relative
// paths resolve against the working directory.
func Default() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return finish(&Config{baseDir: cwd})
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	normalize(cfg)
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if len(cfg.Core.SearchPaths) == 0 {
		cfg.Core.SearchPaths = []string{"lib/ansible/module_utils"}
	}
	if cfg.Collections.CacheEntries <= 0 {
		cfg.Collections.CacheEntries = 4096
	}
	if strings.TrimSpace(cfg.Collections.S3.Region) == "" {
		cfg.Collections.S3.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.Archive.Compression) == "" {
		cfg.Archive.Compression = archive.CompressionDeflate
	}
	if strings.TrimSpace(cfg.Archive.Version) == "" {
		cfg.Archive.Version = version.Version
	}
	if strings.TrimSpace(cfg.Archive.Author) == "" {
		cfg.Archive.Author = "Ansible, Inc."
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".modpack/history.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.ExcludeDirs == nil {
		cfg.Watch.ExcludeDirs = []string{".git", "__pycache__", ".modpack"}
	}
	if cfg.Watch.ExcludeFiles == nil {
		cfg.Watch.ExcludeFiles = []string{"*.pyc", "*.swp", "*~"}
	}
	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
}

func normalize(cfg *Config) {
	cfg.Core.SearchPaths = resolveAll(cfg.baseDir, cfg.Core.SearchPaths)
	if p := strings.TrimSpace(cfg.Core.BuiltinRuntime); p != "" {
		cfg.Core.BuiltinRuntime = ResolveRelative(cfg.baseDir, p)
	}
	cfg.Collections.Paths = resolveAll(cfg.baseDir, cfg.Collections.Paths)
	cfg.History.Path = ResolveRelative(cfg.baseDir, cfg.History.Path)

	s3 := &cfg.Collections.S3
	s3.Endpoint = strings.TrimSpace(s3.Endpoint)
	s3.Bucket = strings.TrimSpace(s3.Bucket)
	s3.Prefix = strings.Trim(strings.TrimSpace(s3.Prefix), "/")

	cfg.Archive.Compression = strings.ToLower(strings.TrimSpace(cfg.Archive.Compression))
	cfg.Archive.DateTime = strings.TrimSpace(cfg.Archive.DateTime)
	cfg.Observability.Address = strings.TrimSpace(cfg.Observability.Address)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}

func resolveAll(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, ResolveRelative(base, p))
	}
	return out
}
