package locator

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"

	"modpack/internal/core/errors"
	"modpack/internal/engine/module"
)

// libraryDepth is the number of segments in ansible_collections.ns.coll.plugins.module_utils.
const libraryDepth = 5

var librarySegments = module.Name{"plugins", "module_utils"}

// CollectionLocator resolves ansible_collections names through a ResourceIndex.
// Levels above plugins.module_utils are always stub packages so no other
// collection code is ever shipped.
type CollectionLocator struct {
	index  ResourceIndex
	router *Router
}

func NewCollectionLocator(index ResourceIndex, router *Router) *CollectionLocator {
	return &CollectionLocator{index: index, router: router}
}

func (l *CollectionLocator) Locate(ctx context.Context, item module.WorkItem) (Result, error) {
	if !item.Name.IsCollection() {
		err := errors.New(errors.CodeValidationError, fmt.Sprintf("collection locator can only resolve below %s, got %s", module.CollectionNamespace, item.Name))
		return Result{}, errors.AddContext(err, errors.CtxModule, item.Name.String())
	}
	if len(item.Name) > libraryDepth && !item.Name[3:libraryDepth].Equal(librarySegments) {
		err := errors.New(errors.CodeValidationError, fmt.Sprintf("collection locator can only resolve below %s.(ns).(coll).plugins.module_utils, got %s", module.CollectionNamespace, item.Name))
		return Result{}, errors.AddContext(err, errors.CtxModule, item.Name.String())
	}
	return locate(ctx, l, l.router, item, candidateNames(l, item), true)
}

func (l *CollectionLocator) remainder(name module.Name) module.Name {
	if len(name) <= libraryDepth {
		return nil
	}
	return name[libraryDepth:]
}

func (l *CollectionLocator) collection(name module.Name) string {
	if len(name) < 3 {
		return ""
	}
	return name[1] + "." + name[2]
}

func (l *CollectionLocator) find(ctx context.Context, name module.Name) ([]byte, bool, bool, error) {
	if len(name) <= libraryDepth {
		return []byte{}, true, true, nil
	}
	if l.index == nil {
		return nil, false, false, nil
	}

	distribution := name[:3].String()
	resource := path.Join(name[3:]...)

	source, err := l.index.Get(ctx, distribution, path.Join(resource, module.PackageInit+module.SourceSuffix))
	if err == nil {
		return source, true, true, nil
	}
	if !stderrors.Is(err, ErrResourceNotFound) {
		return nil, false, false, err
	}

	source, err = l.index.Get(ctx, distribution, resource+module.SourceSuffix)
	if err == nil {
		return source, false, true, nil
	}
	if !stderrors.Is(err, ErrResourceNotFound) {
		return nil, false, false, err
	}
	return nil, false, false, nil
}
