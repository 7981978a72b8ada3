package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modpack/internal/core/errors"
	"modpack/internal/data/history"
	"modpack/internal/engine/archive"
	"modpack/internal/engine/closure"
	"modpack/internal/engine/locator"
	"modpack/internal/engine/module"
	"modpack/internal/shared/observability"
	"modpack/internal/shared/util"

	"golang.org/x/sync/errgroup"
)

// Request names one entry script to assemble.
type Request struct {
	Script string
	// FQN overrides the entry name derived from Script.
	FQN string
	// Output is the archive path to write.
	Output string
	// DateTime overrides the configured archive timestamp.
	DateTime *archive.DateTime
}

// Assembly is the outcome of one successful Assemble.
type Assembly struct {
	ID              string
	Entry           string
	Script          string
	Output          string
	Modules         []module.Resolved
	Summary         *archive.Summary
	AttributeRefs   []string
	DroppedOptional []string
	Ignored         []string
	Duration        time.Duration
}

// DeriveFQN names an entry script the way the controller would import it:
// scripts inside a collection tree keep their collection path, anything
// else becomes ansible.modules.<stem>.
func DeriveFQN(script string) string {
	clean := filepath.ToSlash(filepath.Clean(script))
	stem := strings.TrimSuffix(clean, ".py")
	parts := strings.Split(stem, "/")
	for i, p := range parts {
		if p == module.CollectionNamespace && len(parts)-i > 3 {
			return strings.Join(parts[i:], ".")
		}
	}
	return "ansible.modules." + parts[len(parts)-1]
}

// OutputPath is where a script's archive lands inside dir.
func OutputPath(dir, script string) string {
	stem := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
	return filepath.Join(dir, stem+".zip")
}

// Assemble resolves the closure of req.Script, writes the archive and
// records it in history when enabled.
func (a *App) Assemble(ctx context.Context, req Request) (asm *Assembly, err error) {
	start := time.Now()
	snap := a.snapshot()

	fqn := strings.TrimSpace(req.FQN)
	if fqn == "" {
		fqn = DeriveFQN(req.Script)
	}
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		observability.AssembliesTotal.WithLabelValues(outcome).Inc()
		observability.AssemblyDuration.Observe(time.Since(start).Seconds())
		a.recordOutcome(fqn, outcome)
	}()

	if strings.TrimSpace(req.Output) == "" {
		return nil, errors.New(errors.CodeValidationError, "output path is required")
	}
	source, err := os.ReadFile(req.Script)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read entry script"), errors.CtxPath, req.Script)
	}

	// Routers memoize per-collection metadata and are not shared between builds.
	router := locator.NewRouter(snap.builtin, snap.index)
	builder := closure.NewBuilder(
		a.Extractor,
		locator.NewCoreLocator(snap.cfg.Core.SearchPaths, router),
		locator.NewCollectionLocator(snap.index, router),
		snap.roots,
	)
	res, err := builder.Build(ctx, fqn, source)
	if err != nil {
		return nil, err
	}

	entries := res.Cache.Entries()
	if snap.cfg.Archive.IncludeEntry {
		entries = append(entries, archive.EntryModule(fqn, source))
	}

	opts, err := archiveOptions(snap.cfg.Archive.Compression, snap.cfg.Archive.Level, snap.cfg.Archive.DateTime, req.DateTime)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	summary, err := archive.Write(&buf, entries, opts)
	if err != nil {
		return nil, err
	}
	if err := util.WriteFileWithDirs(req.Output, buf.Bytes(), 0o644); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write archive"), errors.CtxPath, req.Output)
	}

	asm = &Assembly{
		Entry:           fqn,
		Script:          req.Script,
		Output:          req.Output,
		Modules:         entries,
		Summary:         summary,
		AttributeRefs:   res.AttributeRefs,
		DroppedOptional: res.DroppedOptional,
		Ignored:         res.Ignored,
	}
	if a.history != nil {
		id, err := a.history.Save(historyRecord(asm))
		if err != nil {
			slog.Warn("failed to record assembly", "entry", fqn, "error", err)
		} else {
			asm.ID = id
		}
	}
	asm.Duration = time.Since(start)

	slog.Info("assembled",
		"entry", fqn,
		"modules", len(entries),
		"bytes", summary.Size,
		"output", req.Output,
		"elapsed", asm.Duration,
	)
	return asm, nil
}

// AssembleBatch assembles every request with at most cfg.Workers running at
// once. The first failure cancels the assemblies that have not finished;
// results keep request order and hold nil for unfinished ones.
func (a *App) AssembleBatch(ctx context.Context, reqs []Request) ([]*Assembly, error) {
	out := make([]*Assembly, len(reqs))
	seen := make(map[string]string, len(reqs))
	for _, req := range reqs {
		key := filepath.Clean(req.Output)
		if prev, dup := seen[key]; dup {
			return nil, errors.AddContext(
				errors.New(errors.CodeValidationError, fmt.Sprintf("%s and %s write the same archive", prev, req.Script)),
				errors.CtxPath, req.Output)
		}
		seen[key] = req.Script
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.snapshot().cfg.Workers))
	for i, req := range reqs {
		g.Go(func() error {
			asm, err := a.Assemble(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.Script, err)
			}
			out[i] = asm
			return nil
		})
	}
	return out, g.Wait()
}

func archiveOptions(compression string, level int, configured string, override *archive.DateTime) (archive.Options, error) {
	opts := archive.Options{Compression: compression, Level: level, DateTime: override}
	if opts.DateTime == nil && strings.TrimSpace(configured) != "" {
		dt, err := archive.ParseDateTime(configured)
		if err != nil {
			return opts, err
		}
		opts.DateTime = &dt
	}
	return opts, nil
}

func historyRecord(asm *Assembly) history.Record {
	mods := make([]history.Module, 0, len(asm.Modules))
	for _, m := range asm.Modules {
		mods = append(mods, history.Module{
			FQN:         m.Name.String(),
			ArchivePath: m.ArchivePath,
			Redirected:  m.Redirected,
		})
	}
	return history.Record{
		Entry:       asm.Entry,
		Digest:      asm.Summary.Digest,
		ModuleCount: len(mods),
		Size:        asm.Summary.Size,
		ArchivePath: asm.Output,
		Timestamp:   time.Now().UTC(),
		Modules:     mods,
	}
}
