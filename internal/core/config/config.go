package config

import "time"

// Config is the decoded modpack.toml.
type Config struct {
	Version       int           `toml:"version"`
	Workers       int           `toml:"workers"`
	Core          Core          `toml:"core"`
	Collections   Collections   `toml:"collections"`
	Archive       Archive       `toml:"archive"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`

	// baseDir is the directory relative paths are resolved against.
	baseDir string
}

// Core configures the ansible.module_utils namespace.
type Core struct {
	// SearchPaths are module_utils directories, searched in order.
	SearchPaths []string `toml:"search_paths"`
	// BuiltinRuntime is an optional runtime.yml routing file for the core namespace.
	BuiltinRuntime string `toml:"builtin_runtime"`
}

// Collections configures the ansible_collections namespace.
type Collections struct {
	// Paths are roots that contain an ansible_collections directory.
	Paths        []string `toml:"paths"`
	S3           S3       `toml:"s3"`
	CacheEntries int      `toml:"cache_entries"`
}

type S3 struct {
	Endpoint  string  `toml:"endpoint"`
	Bucket    string  `toml:"bucket"`
	Prefix    string  `toml:"prefix"`
	AccessKey string  `toml:"access_key"`
	SecretKey string  `toml:"secret_key"`
	Region    string  `toml:"region"`
	UseSSL    bool    `toml:"use_ssl"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// Enabled reports whether an object store index is configured.
func (s S3) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

type Archive struct {
	Compression string `toml:"compression"`
	Level       int    `toml:"level"`
	// Version and Author are stamped into ansible/__init__.py.
	Version string `toml:"version"`
	Author  string `toml:"author"`
	// DateTime fixes the record timestamp; empty means now.
	DateTime     string `toml:"date_time"`
	IncludeEntry bool   `toml:"include_entry"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	ExcludeDirs  []string      `toml:"exclude_dirs"`
	ExcludeFiles []string      `toml:"exclude_files"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
}
