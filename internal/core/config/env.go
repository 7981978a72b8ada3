package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: MODPACK_[SECTION]_[KEY] (e.g., MODPACK_ARCHIVE_DATE_TIME).
// List values are separated by the OS path list separator.
func ApplyEnvOverrides(cfg *Config) {
	setEnvInt(&cfg.Workers, "MODPACK_WORKERS")

	// Core
	setEnvList(&cfg.Core.SearchPaths, "MODPACK_CORE_SEARCH_PATHS")
	setEnvString(&cfg.Core.BuiltinRuntime, "MODPACK_CORE_BUILTIN_RUNTIME")

	// Collections
	setEnvList(&cfg.Collections.Paths, "MODPACK_COLLECTIONS_PATHS")
	setEnvInt(&cfg.Collections.CacheEntries, "MODPACK_COLLECTIONS_CACHE_ENTRIES")
	setEnvString(&cfg.Collections.S3.Endpoint, "MODPACK_COLLECTIONS_S3_ENDPOINT")
	setEnvString(&cfg.Collections.S3.Bucket, "MODPACK_COLLECTIONS_S3_BUCKET")
	setEnvString(&cfg.Collections.S3.Prefix, "MODPACK_COLLECTIONS_S3_PREFIX")
	setEnvSecret(&cfg.Collections.S3.AccessKey, "MODPACK_COLLECTIONS_S3_ACCESS_KEY")
	setEnvSecret(&cfg.Collections.S3.SecretKey, "MODPACK_COLLECTIONS_S3_SECRET_KEY")
	setEnvString(&cfg.Collections.S3.Region, "MODPACK_COLLECTIONS_S3_REGION")
	setEnvBool(&cfg.Collections.S3.UseSSL, "MODPACK_COLLECTIONS_S3_USE_SSL")
	setEnvFloat64(&cfg.Collections.S3.RateLimit, "MODPACK_COLLECTIONS_S3_RATE_LIMIT")
	setEnvInt(&cfg.Collections.S3.Burst, "MODPACK_COLLECTIONS_S3_BURST")

	// Archive
	setEnvString(&cfg.Archive.Compression, "MODPACK_ARCHIVE_COMPRESSION")
	setEnvInt(&cfg.Archive.Level, "MODPACK_ARCHIVE_LEVEL")
	setEnvString(&cfg.Archive.Version, "MODPACK_ARCHIVE_VERSION")
	setEnvString(&cfg.Archive.Author, "MODPACK_ARCHIVE_AUTHOR")
	setEnvString(&cfg.Archive.DateTime, "MODPACK_ARCHIVE_DATE_TIME")
	setEnvBool(&cfg.Archive.IncludeEntry, "MODPACK_ARCHIVE_INCLUDE_ENTRY")

	// History
	setEnvBool(&cfg.History.Enabled, "MODPACK_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "MODPACK_HISTORY_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "MODPACK_WATCH_DEBOUNCE")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "MODPACK_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "MODPACK_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "MODPACK_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "MODPACK_OBSERVABILITY_ENABLE_TRACING")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvSecret(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", "<redacted>")
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		var out []string
		for _, p := range strings.Split(val, string(filepath.ListSeparator)) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
