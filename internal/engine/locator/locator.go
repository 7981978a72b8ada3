// Package locator finds the source of library modules without importing or
// executing any of it. There are exactly two variants: the core namespace
// searched on disk and the collection namespace served by a ResourceIndex.
package locator

import (
	"context"

	"modpack/internal/engine/module"
)

// Locator resolves a work item to a module or reports it as not found.
type Locator interface {
	Locate(ctx context.Context, item module.WorkItem) (Result, error)
}

// Result is the outcome of one Locate call.
type Result struct {
	Module module.Resolved
	Found  bool
	// Candidates lists every name that was tried, in order.
	Candidates []module.Name
}

// variant is what each namespace contributes to the shared lookup loop.
type variant interface {
	// remainder returns the segments below the namespace's library root.
	remainder(name module.Name) module.Name
	// collection names the routing table consulted for redirects.
	collection(name module.Name) string
	find(ctx context.Context, name module.Name) (source []byte, isPackage bool, found bool, err error)
}

// candidateNames implements the module-or-attribute disambiguation: an
// ambiguous name more than one level below the library root is tried as is
// and then as its parent.
func candidateNames(v variant, item module.WorkItem) []module.Name {
	if item.Ambiguous && len(v.remainder(item.Name)) > 1 {
		return []module.Name{item.Name.Clone(), item.Name.Parent()}
	}
	return []module.Name{item.Name.Clone()}
}

// locate tries each candidate in order. Redirects are consulted before the
// variant's own lookup when redirectFirst is set, after it otherwise. When
// nothing matches and an ancestor was redirected, the last candidate becomes
// an empty stub package.
func locate(ctx context.Context, v variant, router *Router, item module.WorkItem, candidates []module.Name, redirectFirst bool) (Result, error) {
	res := Result{Candidates: candidates}

	var last module.Name
	for _, cand := range candidates {
		last = cand

		if redirectFirst {
			if resolved, ok, err := router.redirect(ctx, v, cand, item.Optional); err != nil {
				return res, err
			} else if ok {
				res.Module, res.Found = resolved, true
				return res, nil
			}
		}

		source, isPackage, found, err := v.find(ctx, cand)
		if err != nil {
			return res, err
		}
		if found {
			res.Module, res.Found = module.NewResolved(cand, source, isPackage), true
			return res, nil
		}

		if !redirectFirst {
			if resolved, ok, err := router.redirect(ctx, v, cand, item.Optional); err != nil {
				return res, err
			} else if ok {
				res.Module, res.Found = resolved, true
				return res, nil
			}
		}
	}

	if item.RedirectChild && last != nil {
		res.Module, res.Found = module.NewResolved(last, []byte{}, true), true
	}
	return res, nil
}
