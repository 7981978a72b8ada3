// Package closure computes the transitive set of library modules an entry
// script needs, without executing any of them.
package closure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modpack/internal/core/errors"
	"modpack/internal/engine/locator"
	"modpack/internal/engine/module"
	"modpack/internal/engine/parser"
	"modpack/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Extractor returns the library references found in one module source.
type Extractor interface {
	Extract(moduleFQN string, source []byte, isPackageInit bool) (*parser.Dependencies, error)
}

// Builder is stateless between calls; every Build owns its own worklist and
// cache, so one Builder may serve concurrent builds.
type Builder struct {
	extractor   Extractor
	core        locator.Locator
	collections locator.Locator
	roots       []module.Resolved
}

// NewBuilder wires the extractor and both namespace locators. roots are the
// synthetic packages every cache starts with; when empty, ansible and
// ansible.module_utils are seeded as empty packages.
func NewBuilder(extractor Extractor, core, collections locator.Locator, roots []module.Resolved) *Builder {
	if len(roots) == 0 {
		roots = []module.Resolved{
			module.NewResolved(module.CoreRoot.Parent(), []byte{}, true),
			module.NewResolved(module.CoreRoot, []byte{}, true),
		}
	}
	return &Builder{
		extractor:   extractor,
		core:        core,
		collections: collections,
		roots:       roots,
	}
}

// Result is the outcome of a successful Build.
type Result struct {
	Entry module.Name
	// Cache holds every module to ship, synthetic roots first.
	Cache *module.Cache
	// AttributeRefs are requested names that turned out to be attributes of
	// the module that was shipped in their place.
	AttributeRefs []string
	// DroppedOptional are optional references that could not be located.
	DroppedOptional []string
	// Ignored are references under an unrecognized root.
	Ignored []string
}

// Build resolves the closure of the entry script source named entryFQN.
func (b *Builder) Build(ctx context.Context, entryFQN string, source []byte) (res *Result, err error) {
	ctx, span := observability.Tracer.Start(ctx, "closure.Build")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("modpack.entry", entryFQN))

	start := time.Now()
	entry := module.Parse(entryFQN)
	if len(entry) == 0 {
		return nil, errors.New(errors.CodeValidationError, "entry module name is required")
	}

	deps, err := b.extractor.Extract(entryFQN, source, false)
	if err != nil {
		return nil, err
	}

	cache := module.NewCache()
	for _, root := range b.roots {
		cache.Add(root)
	}

	work := module.NewWorklist(module.WorkItem{
		Name:      module.Bootstrap.Clone(),
		Requester: entryFQN,
	})
	for _, name := range deps.Names() {
		work.Push(module.WorkItem{
			Name:      name,
			Ambiguous: true,
			Optional:  deps.IsOptional(name),
			Requester: entryFQN,
		})
	}

	res = &Result{Entry: entry, Cache: cache}
	attrs := map[string]struct{}{}
	// parents holds every name enqueued as the ancestor of a cached module.
	parents := map[string]struct{}{}

	for {
		item, ok := work.Pop()
		if !ok {
			break
		}
		if cache.Has(item.Name) {
			continue
		}

		loc := b.locatorFor(item.Name)
		if loc == nil {
			slog.Warn("ignoring reference under unrecognized root",
				"module", item.Name.String(),
				"requester", item.Requester,
			)
			res.Ignored = append(res.Ignored, item.Name.String())
			continue
		}

		found, err := loc.Locate(ctx, item)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if item.Optional && !errors.IsCode(err, errors.CodeValidationError) {
				if _, ok := parents[item.Name.String()]; ok {
					stubParent(res.Cache, item.Name)
					continue
				}
				slog.Debug("dropping optional module after lookup error", "module", item.Name.String(), "error", err)
				observability.OptionalDroppedTotal.Inc()
				res.DroppedOptional = append(res.DroppedOptional, item.Name.String())
				continue
			}
			return nil, errors.AddContext(err, errors.CtxRequester, item.Requester)
		}

		if !found.Found {
			if item.Optional {
				if _, ok := parents[item.Name.String()]; ok {
					stubParent(res.Cache, item.Name)
					continue
				}
				slog.Debug("dropping optional module", "module", item.Name.String(), "requester", item.Requester)
				observability.OptionalDroppedTotal.Inc()
				res.DroppedOptional = append(res.DroppedOptional, item.Name.String())
				continue
			}
			return nil, notFound(entryFQN, item, found.Candidates)
		}

		resolved := found.Module
		if !resolved.Name.Equal(item.Name) {
			key := item.Name.String()
			if _, seen := attrs[key]; !seen {
				attrs[key] = struct{}{}
				res.AttributeRefs = append(res.AttributeRefs, key)
			}
		}
		if cache.Has(resolved.Name) {
			continue
		}

		resolvedFQN := resolved.Name.String()
		childDeps, err := b.extractor.Extract(resolvedFQN, resolved.Source, resolved.IsPackage)
		if err != nil {
			return nil, err
		}
		for _, name := range childDeps.Names() {
			if cache.Has(name) {
				continue
			}
			work.Push(module.WorkItem{
				Name:      name,
				Ambiguous: true,
				Optional:  childDeps.IsOptional(name),
				Requester: resolvedFQN,
			})
		}

		cache.Add(resolved)
		observability.ModulesResolvedTotal.WithLabelValues(namespaceLabel(resolved.Name)).Inc()
		slog.Debug("module resolved",
			"module", resolvedFQN,
			"package", resolved.IsPackage,
			"redirected", resolved.Redirected,
		)

		for _, parent := range resolved.Name.Ancestors() {
			if cache.Has(parent) {
				continue
			}
			parents[parent.String()] = struct{}{}
			work.Push(module.WorkItem{
				Name:          parent,
				RedirectChild: resolved.Redirected,
				Optional:      item.Optional,
				Requester:     resolvedFQN,
			})
		}
	}

	span.SetAttributes(attribute.Int("modpack.modules", cache.Len()))
	slog.Debug("closure complete",
		"entry", entryFQN,
		"modules", cache.Len(),
		"elapsed", time.Since(start),
	)
	return res, nil
}

// stubParent caches an empty package for an optional ancestor that could not
// be located, so a cached child never ships without its parent package.
func stubParent(cache *module.Cache, name module.Name) {
	slog.Debug("synthesizing missing parent package", "module", name.String())
	cache.Add(module.NewResolved(name.Clone(), []byte{}, true))
}

func (b *Builder) locatorFor(name module.Name) locator.Locator {
	switch {
	case name.IsCore():
		return b.core
	case name.IsCollection():
		return b.collections
	}
	return nil
}

func notFound(entryFQN string, item module.WorkItem, candidates []module.Name) error {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.String())
	}
	joined := strings.Join(names, ", ")
	msg := fmt.Sprintf("could not find imported module support code for %s; looked for (%s)", entryFQN, joined)

	err := errors.New(errors.CodeNotFound, msg)
	err = errors.AddContext(err, errors.CtxModule, entryFQN)
	err = errors.AddContext(err, errors.CtxRequester, item.Requester)
	return errors.AddContext(err, errors.CtxCandidates, joined)
}

func namespaceLabel(name module.Name) string {
	if name.IsCollection() {
		return "collections"
	}
	return "core"
}
