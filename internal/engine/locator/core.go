package locator

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"modpack/internal/core/errors"
	"modpack/internal/engine/module"
)

// CoreLocator resolves ansible.module_utils names against an ordered list of
// directories. Local files win over routing redirects.
type CoreLocator struct {
	roots  []string
	router *Router
}

func NewCoreLocator(roots []string, router *Router) *CoreLocator {
	return &CoreLocator{
		roots:  append([]string(nil), roots...),
		router: router,
	}
}

func (l *CoreLocator) Locate(ctx context.Context, item module.WorkItem) (Result, error) {
	if !item.Name.IsCore() || len(item.Name) < 3 {
		err := errors.New(errors.CodeValidationError, fmt.Sprintf("core locator can only resolve below %s, got %s", module.CoreRoot, item.Name))
		return Result{}, errors.AddContext(err, errors.CtxModule, item.Name.String())
	}

	var candidates []module.Name
	if item.Name[2] == module.SixShim[2] {
		// six builds its submodules at runtime; ship the whole shim instead.
		candidates = []module.Name{module.SixShim.Clone()}
	} else {
		candidates = candidateNames(l, item)
	}
	return locate(ctx, l, l.router, item, candidates, false)
}

func (l *CoreLocator) remainder(name module.Name) module.Name {
	if len(name) <= 2 {
		return nil
	}
	return name[2:]
}

func (l *CoreLocator) collection(module.Name) string {
	return BuiltinCollection
}

func (l *CoreLocator) find(ctx context.Context, name module.Name) ([]byte, bool, bool, error) {
	rel := l.remainder(name)
	if len(rel) == 0 {
		return nil, false, false, nil
	}
	last := rel[len(rel)-1]

	for _, root := range l.roots {
		if err := ctx.Err(); err != nil {
			return nil, false, false, err
		}
		dir := filepath.Join(append([]string{root}, rel[:len(rel)-1]...)...)

		initPath := filepath.Join(dir, last, module.PackageInit+module.SourceSuffix)
		if source, ok, err := readSource(initPath); err != nil || ok {
			return source, true, ok, err
		}
		flatPath := filepath.Join(dir, last+module.SourceSuffix)
		if source, ok, err := readSource(flatPath); err != nil || ok {
			return source, false, ok, err
		}
	}
	return nil, false, false, nil
}

func readSource(path string) ([]byte, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, fs.ErrPermission) {
			return nil, false, nil
		}
		return nil, false, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "stat module source"), errors.CtxPath, path)
	}
	if info.IsDir() {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read module source"), errors.CtxPath, path)
	}
	return data, true, nil
}
