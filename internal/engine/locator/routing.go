package locator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"modpack/internal/core/errors"
	"modpack/internal/engine/module"
	"modpack/internal/shared/observability"

	"gopkg.in/yaml.v3"
)

const (
	// BuiltinCollection is the routing table name for the core namespace.
	BuiltinCollection = "ansible.builtin"
	runtimeMetadata   = "meta/runtime.yml"
)

// Routing is the module_utils section of a collection's plugin routing table.
type Routing struct {
	ModuleUtils map[string]RoutingEntry
}

type RoutingEntry struct {
	Redirect    string         `yaml:"redirect"`
	Tombstone   *RoutingNotice `yaml:"tombstone"`
	Deprecation *RoutingNotice `yaml:"deprecation"`
}

type RoutingNotice struct {
	RemovalVersion string `yaml:"removal_version"`
	RemovalDate    string `yaml:"removal_date"`
	WarningText    string `yaml:"warning_text"`
}

type runtimeFile struct {
	PluginRouting struct {
		ModuleUtils map[string]RoutingEntry `yaml:"module_utils"`
	} `yaml:"plugin_routing"`
}

// ParseRouting decodes a runtime.yml document.
func ParseRouting(data []byte) (*Routing, error) {
	var doc runtimeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	routing := &Routing{ModuleUtils: doc.PluginRouting.ModuleUtils}
	if routing.ModuleUtils == nil {
		routing.ModuleUtils = map[string]RoutingEntry{}
	}
	return routing, nil
}

// LoadRoutingFile reads a routing table from disk. An empty path yields an
// empty table.
func LoadRoutingFile(path string) (*Routing, error) {
	if strings.TrimSpace(path) == "" {
		return &Routing{ModuleUtils: map[string]RoutingEntry{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file %q: %w", path, err)
	}
	routing, err := ParseRouting(data)
	if err != nil {
		return nil, fmt.Errorf("parse routing file %q: %w", path, err)
	}
	return routing, nil
}

// Router answers redirect questions for one assembly. Collection metadata is
// fetched from the resource index once per collection and kept for the
// lifetime of the Router. Not safe for concurrent use.
type Router struct {
	builtin *Routing
	index   ResourceIndex
	loaded  map[string]*Routing
}

func NewRouter(builtin *Routing, index ResourceIndex) *Router {
	return &Router{
		builtin: builtin,
		index:   index,
		loaded:  make(map[string]*Routing),
	}
}

func (r *Router) routing(ctx context.Context, collection string) (*Routing, error) {
	if collection == BuiltinCollection {
		return r.builtin, nil
	}
	if routing, ok := r.loaded[collection]; ok {
		return routing, nil
	}
	if r.index == nil {
		return nil, nil
	}

	data, err := r.index.Get(ctx, module.CollectionNamespace+"."+collection, runtimeMetadata)
	var routing *Routing
	switch {
	case stderrors.Is(err, ErrResourceNotFound):
		routing = &Routing{ModuleUtils: map[string]RoutingEntry{}}
	case err != nil:
		return nil, err
	default:
		routing, err = ParseRouting(data)
		if err != nil {
			return nil, err
		}
	}
	r.loaded[collection] = routing
	return routing, nil
}

// redirect turns a routing entry for name into a shim module that re-exports
// the redirect target.
func (r *Router) redirect(ctx context.Context, v variant, name module.Name, optional bool) (module.Resolved, bool, error) {
	if r == nil {
		return module.Resolved{}, false, nil
	}
	rel := v.remainder(name)
	if len(rel) == 0 {
		return module.Resolved{}, false, nil
	}

	collection := v.collection(name)
	routing, err := r.routing(ctx, collection)
	if err != nil {
		if optional {
			return module.Resolved{}, false, nil
		}
		wrapped := errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("error processing module_util %s loading redirected collection %s", name, collection))
		return module.Resolved{}, false, errors.AddContext(wrapped, errors.CtxModule, name.String())
	}
	if routing == nil {
		return module.Resolved{}, false, nil
	}

	entry, ok := routing.ModuleUtils[rel.String()]
	if !ok {
		return module.Resolved{}, false, nil
	}

	if entry.Tombstone != nil {
		msg := fmt.Sprintf("module_util %s has been removed", name)
		if text := strings.TrimSpace(entry.Tombstone.WarningText); text != "" {
			msg += ": " + text
		}
		return module.Resolved{}, false, errors.AddContext(errors.New(errors.CodeRemoved, msg), errors.CtxModule, name.String())
	}
	if entry.Deprecation != nil {
		slog.Warn("module_util is deprecated",
			"module", name.String(),
			"removal_version", entry.Deprecation.RemovalVersion,
			"removal_date", entry.Deprecation.RemovalDate,
			"warning", entry.Deprecation.WarningText,
		)
	}

	target := strings.TrimSpace(entry.Redirect)
	if target == "" {
		return module.Resolved{}, false, nil
	}
	target, err = expandRedirect(target)
	if err != nil {
		return module.Resolved{}, false, errors.AddContext(err, errors.CtxModule, name.String())
	}

	slog.Debug("module_util redirected", "module", name.String(), "target", target)
	observability.RedirectsTotal.Inc()

	resolved := module.NewResolved(name, shimSource(name.String(), target), false)
	resolved.Redirected = true
	return resolved, true, nil
}

// expandRedirect turns a collection-relative target (ns.coll.rest) into a
// fully-qualified module name. Fully-qualified targets are kept as is.
func expandRedirect(target string) (string, error) {
	if strings.HasPrefix(target, module.CollectionNamespace+".") || strings.HasPrefix(target, module.CoreRoot.String()+".") {
		return target, nil
	}
	parts := strings.Split(target, ".")
	if len(parts) < 3 {
		return "", errors.New(errors.CodeValidationError, fmt.Sprintf("invalid redirect target %q", target))
	}
	return fmt.Sprintf("%s.%s.%s.plugins.module_utils.%s",
		module.CollectionNamespace, parts[0], parts[1], strings.Join(parts[2:], ".")), nil
}

func shimSource(source, target string) []byte {
	return []byte(fmt.Sprintf(`
import sys
import %s as mod

sys.modules['%s'] = mod
`, target, source))
}
