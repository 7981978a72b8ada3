package locator

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"modpack/internal/core/errors"
	"modpack/internal/engine/module"
)

// ErrResourceNotFound is returned by a ResourceIndex when a resource does not
// exist. It is a signal, not a failure.
var ErrResourceNotFound = stderrors.New("resource not found")

// ResourceIndex returns raw resource bytes for a distribution package
// (ansible_collections.ns.coll) and a slash separated path beneath it.
// Implementations never execute collection code.
type ResourceIndex interface {
	Get(ctx context.Context, distribution, resource string) ([]byte, error)
}

// splitDistribution validates a distribution identifier and returns its
// namespace and collection segments.
func splitDistribution(distribution string) (string, string, error) {
	parts := strings.Split(distribution, ".")
	if len(parts) != 3 || parts[0] != module.CollectionNamespace || parts[1] == "" || parts[2] == "" {
		return "", "", errors.New(errors.CodeValidationError, fmt.Sprintf("invalid distribution %q", distribution))
	}
	return parts[1], parts[2], nil
}

// cleanResource rejects absolute paths and parent references.
func cleanResource(resource string) (string, error) {
	if resource == "" || strings.HasPrefix(resource, "/") {
		return "", errors.New(errors.CodeValidationError, fmt.Sprintf("invalid resource path %q", resource))
	}
	for _, seg := range strings.Split(resource, "/") {
		if seg == ".." {
			return "", errors.New(errors.CodeValidationError, fmt.Sprintf("invalid resource path %q", resource))
		}
	}
	return path.Clean(resource), nil
}

// FSIndex serves collections installed under <root>/ansible_collections/<ns>/<coll>.
// Roots are searched in order; the first root holding the collection wins.
type FSIndex struct {
	roots []string
}

func NewFSIndex(roots []string) *FSIndex {
	return &FSIndex{roots: append([]string(nil), roots...)}
}

func (x *FSIndex) Get(ctx context.Context, distribution, resource string) ([]byte, error) {
	ns, coll, err := splitDistribution(distribution)
	if err != nil {
		return nil, err
	}
	rel, err := cleanResource(resource)
	if err != nil {
		return nil, err
	}

	for _, root := range x.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		collDir := filepath.Join(root, module.CollectionNamespace, ns, coll)
		if info, err := os.Stat(collDir); err != nil || !info.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(collDir, filepath.FromSlash(rel)))
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) || isDirError(err) {
				return nil, ErrResourceNotFound
			}
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read collection resource"), errors.CtxPath, rel)
		}
		return data, nil
	}
	return nil, ErrResourceNotFound
}

func isDirError(err error) bool {
	var pathErr *fs.PathError
	if !stderrors.As(err, &pathErr) {
		return false
	}
	info, statErr := os.Stat(pathErr.Path)
	return statErr == nil && info.IsDir()
}

// MultiIndex consults each index in order and returns the first hit.
type MultiIndex []ResourceIndex

func (m MultiIndex) Get(ctx context.Context, distribution, resource string) ([]byte, error) {
	for _, idx := range m {
		data, err := idx.Get(ctx, distribution, resource)
		if err == nil {
			return data, nil
		}
		if !stderrors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
	}
	return nil, ErrResourceNotFound
}
