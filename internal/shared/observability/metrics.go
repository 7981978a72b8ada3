package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modpack_parsing_seconds",
		Help:    "Time spent parsing a module source for imports.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	AssemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modpack_assembly_seconds",
		Help:    "Time spent resolving and archiving one entry script.",
		Buckets: prometheus.DefBuckets,
	})

	AssembliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modpack_assemblies_total",
		Help: "Total number of assemblies by outcome.",
	}, []string{"outcome"})

	ModulesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modpack_modules_resolved_total",
		Help: "Total number of modules added to a dependency cache, by namespace.",
	}, []string{"namespace"})

	OptionalDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modpack_optional_dropped_total",
		Help: "Total number of optional references that could not be located.",
	})

	RedirectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modpack_redirects_total",
		Help: "Total number of routing redirects turned into shim modules.",
	})

	ResourceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modpack_resource_cache_hits_total",
		Help: "Resource index lookups answered from the shared cache.",
	})

	ResourceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modpack_resource_cache_misses_total",
		Help: "Resource index lookups forwarded to the backing index.",
	})

	ArchiveBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modpack_archive_bytes",
		Help:    "Size of produced archives.",
		Buckets: prometheus.ExponentialBuckets(4096, 2, 12),
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modpack_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
