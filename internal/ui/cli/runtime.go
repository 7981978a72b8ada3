package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "modpack/internal/core/app"
	"modpack/internal/core/config"
	"modpack/internal/engine/archive"
	"modpack/internal/shared/observability"
	"modpack/internal/shared/version"
	"modpack/internal/ui/report"

	"github.com/joho/godotenv"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "modpack %s\n", version.Version)
		return 0
	}

	configureLogging(stderr, opts.verbose)

	switch {
	case opts.list:
		return runList(opts, stdout, stderr)
	case opts.extract != "":
		return runExtract(opts, stdout, stderr)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}
	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if opts.history {
		cfg.History.Enabled = true
	}
	app, err := coreapp.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer app.Close()

	if opts.history {
		return runHistory(ctx, app, opts, stdout)
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, version.Version)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
			return 1
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("failed to flush traces", "error", err)
			}
		}()
	}

	reqs, err := buildRequests(opts)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	results, err := app.AssembleBatch(ctx, reqs)
	ok := reportResults(stdout, stderr, results, err, opts)

	if !opts.watch {
		if !ok {
			return 1
		}
		return 0
	}

	if cfg.Observability.Enabled {
		server := NewObservabilityServer(cfg.Observability.Address, coreapp.NewHealthService(app))
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	slog.Info("watching for changes", "scripts", len(reqs))
	err = app.Watch(ctx, reqs, cfgPath, func(results []*coreapp.Assembly, err error) {
		reportResults(stdout, stderr, results, err, opts)
	})
	if err != nil {
		slog.Error("watch failed", "error", err)
		return 1
	}
	return 0
}

func buildRequests(opts cliOptions) ([]coreapp.Request, error) {
	var dt *archive.DateTime
	if strings.TrimSpace(opts.dateTime) != "" {
		parsed, err := archive.ParseDateTime(opts.dateTime)
		if err != nil {
			return nil, err
		}
		dt = &parsed
	}

	reqs := make([]coreapp.Request, 0, len(opts.args))
	for _, script := range opts.args {
		out := coreapp.OutputPath(opts.out, script)
		if len(opts.args) == 1 && strings.HasSuffix(opts.out, ".zip") {
			out = opts.out
		}
		reqs = append(reqs, coreapp.Request{
			Script:   script,
			FQN:      opts.fqn,
			Output:   out,
			DateTime: dt,
		})
	}
	return reqs, nil
}

// reportResults prints every finished assembly and the batch error, and
// writes manifests when asked. It reports whether the whole batch succeeded.
func reportResults(stdout, stderr io.Writer, results []*coreapp.Assembly, batchErr error, opts cliOptions) bool {
	ok := batchErr == nil
	for _, asm := range results {
		if asm == nil {
			continue
		}
		fmt.Fprint(stdout, report.RenderSummary(asm, opts.verbose))
		if opts.manifest {
			path := manifestPath(asm.Output)
			if err := coreapp.WriteManifest(path, asm); err != nil {
				slog.Error("failed to write manifest", "path", path, "error", err)
				ok = false
			}
		}
	}
	if batchErr != nil {
		fmt.Fprint(stderr, report.RenderFailure("assembly failed", batchErr))
	}
	return ok
}

func manifestPath(archivePath string) string {
	return strings.TrimSuffix(archivePath, filepath.Ext(archivePath)) + ".yml"
}

func runList(opts cliOptions, stdout, stderr io.Writer) int {
	code := 0
	for _, path := range opts.args {
		entries, err := archive.Inspect(path)
		if err != nil {
			fmt.Fprint(stderr, report.RenderFailure(path, err))
			code = 1
			continue
		}
		fmt.Fprint(stdout, report.RenderEntries(path, entries))
	}
	return code
}

func runExtract(opts cliOptions, stdout, stderr io.Writer) int {
	written, err := archive.Extract(opts.args[0], opts.extract)
	if err != nil {
		fmt.Fprint(stderr, report.RenderFailure(opts.args[0], err))
		return 1
	}
	fmt.Fprintf(stdout, "extracted %d files into %s\n", len(written), opts.extract)
	return 0
}

func runHistory(ctx context.Context, app *coreapp.App, opts cliOptions, stdout io.Writer) int {
	result, err := app.HistoryTrend(ctx, coreapp.HistoryTrendRequest{
		Entry:  opts.fqn,
		Window: opts.historyWindow,
		Limit:  opts.historyLimit,
	})
	if err != nil {
		slog.Error("failed to build history trend", "error", err)
		return 1
	}
	if result.Report == nil {
		fmt.Fprintln(stdout, "no assemblies recorded")
		return 0
	}

	var data []byte
	switch strings.ToLower(opts.historyFormat) {
	case "tsv":
		data, err = report.RenderTrendTSV(*result.Report)
	default:
		data, err = report.RenderTrendYAML(*result.Report)
	}
	if err != nil {
		slog.Error("failed to render history trend", "error", err)
		return 1
	}
	_, _ = stdout.Write(data)
	return 0
}

// loadConfig returns the configuration and the file it came from, which is
// empty when defaults were used.
func loadConfig(explicit, cwd string) (*config.Config, string, error) {
	path := config.Locate(explicit, cwd)
	if path == "" {
		cfg, err := config.Default()
		return cfg, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("configuration loaded", "path", path)
	return cfg, path, nil
}

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
