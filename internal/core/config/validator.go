package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"modpack/internal/core/errors"
	"modpack/internal/engine/archive"

	"github.com/gobwas/glob"
)

// Validate returns every problem found in cfg, in section order.
func Validate(cfg *Config) []error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, errors.Wrap(err, errors.CodeValidationError, "invalid configuration"))
		}
	}

	add(validateVersion(cfg))
	add(validateCore(cfg))
	add(validateCollections(cfg))
	add(validateArchive(cfg))
	add(validateHistory(cfg))
	add(validateWatch(cfg))
	add(validateObservability(cfg))
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", cfg.Workers)
	}
	return nil
}

func validateCore(cfg *Config) error {
	if len(cfg.Core.SearchPaths) == 0 {
		return fmt.Errorf("core.search_paths must list at least one directory")
	}
	for _, p := range cfg.Core.SearchPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return fmt.Errorf("core.search_paths entry %q is not a directory", p)
		}
	}
	if p := cfg.Core.BuiltinRuntime; p != "" {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			return fmt.Errorf("core.builtin_runtime %q must be a readable file", p)
		}
	}
	return nil
}

func validateCollections(cfg *Config) error {
	for _, p := range cfg.Collections.Paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return fmt.Errorf("collections.paths entry %q is not a directory", p)
		}
	}
	s3 := cfg.Collections.S3
	if (s3.Endpoint == "") != (s3.Bucket == "") {
		return fmt.Errorf("collections.s3 requires both endpoint and bucket")
	}
	if (s3.AccessKey == "") != (s3.SecretKey == "") {
		return fmt.Errorf("collections.s3 access_key and secret_key must be set together")
	}
	if s3.RateLimit < 0 || s3.Burst < 0 {
		return fmt.Errorf("collections.s3 rate_limit and burst must not be negative")
	}
	return nil
}

func validateArchive(cfg *Config) error {
	switch cfg.Archive.Compression {
	case archive.CompressionDeflate, archive.CompressionStore:
	default:
		return fmt.Errorf("archive.compression must be one of: deflate, store; got %q", cfg.Archive.Compression)
	}
	if cfg.Archive.Level < -2 || cfg.Archive.Level > 9 {
		return fmt.Errorf("archive.level must be between -2 and 9, got %d", cfg.Archive.Level)
	}
	if cfg.Archive.DateTime != "" {
		if _, err := archive.ParseDateTime(cfg.Archive.DateTime); err != nil {
			return fmt.Errorf("archive.date_time: %w", err)
		}
	}
	if strings.ContainsAny(cfg.Archive.Version+cfg.Archive.Author, "\"\n\\") {
		return fmt.Errorf("archive.version and archive.author must not contain quotes, backslashes or newlines")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if !cfg.History.Enabled {
		return nil
	}
	if info, err := os.Stat(cfg.History.Path); err == nil && info.IsDir() {
		return fmt.Errorf("history.path %q is a directory", cfg.History.Path)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for _, pattern := range cfg.Watch.ExcludeFiles {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("watch.exclude_files pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if !cfg.Observability.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Observability.Address); err != nil {
		return fmt.Errorf("observability.address %q: %w", cfg.Observability.Address, err)
	}
	if cfg.Observability.EnableTracing && cfg.Observability.OTLPEndpoint == "" {
		return fmt.Errorf("observability.enable_tracing requires observability.otlp_endpoint")
	}
	return nil
}
