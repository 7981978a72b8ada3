// Package module holds the per-assembly data model: module names, pending
// work items, resolved modules and the ordered dependency cache.
package module

import (
	"path"
	"strings"
)

const (
	CoreNamespace       = "ansible"
	CoreLibrary         = "module_utils"
	CollectionNamespace = "ansible_collections"

	// SourceSuffix is appended to every archive path.
	SourceSuffix = ".py"
	// PackageInit is the synthetic final segment of a package archive path.
	PackageInit = "__init__"
)

var (
	// CoreRoot is the fixed root of the core library namespace.
	CoreRoot = Name{CoreNamespace, CoreLibrary}
	// Bootstrap is always shipped; the remote argument handling imports it.
	Bootstrap = Name{CoreNamespace, CoreLibrary, "basic"}
	// SixShim is the single name every six.* reference folds to.
	SixShim = Name{CoreNamespace, CoreLibrary, "six"}
)

// Name is a fully-qualified dotted module name split into segments.
type Name []string

// Parse splits a dotted name. Empty segments are dropped.
func Parse(dotted string) Name {
	parts := strings.Split(strings.TrimSpace(dotted), ".")
	out := make(Name, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (n Name) String() string {
	return strings.Join(n, ".")
}

func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading segment run of n.
func (n Name) HasPrefix(prefix Name) bool {
	if len(prefix) > len(n) {
		return false
	}
	return n[:len(prefix)].Equal(prefix)
}

// Parent drops the last segment. The parent of a one-segment name is nil.
func (n Name) Parent() Name {
	if len(n) <= 1 {
		return nil
	}
	return n.Clone()[:len(n)-1]
}

// Child returns a new name with seg appended.
func (n Name) Child(seg ...string) Name {
	out := make(Name, 0, len(n)+len(seg))
	out = append(out, n...)
	return append(out, seg...)
}

// Ancestors returns every strict prefix, shortest first.
func (n Name) Ancestors() []Name {
	if len(n) <= 1 {
		return nil
	}
	out := make([]Name, 0, len(n)-1)
	for i := 1; i < len(n); i++ {
		out = append(out, n.Clone()[:i])
	}
	return out
}

func (n Name) Clone() Name {
	out := make(Name, len(n))
	copy(out, n)
	return out
}

// Compare orders names segment by segment; a prefix sorts first.
func (n Name) Compare(other Name) int {
	for i := 0; i < len(n) && i < len(other); i++ {
		if c := strings.Compare(n[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(n) < len(other):
		return -1
	case len(n) > len(other):
		return 1
	}
	return 0
}

// IsCore reports whether n lives under ansible.module_utils.
func (n Name) IsCore() bool {
	return n.HasPrefix(CoreRoot)
}

// IsCollection reports whether n lives under ansible_collections.
func (n Name) IsCollection() bool {
	return len(n) > 0 && n[0] == CollectionNamespace
}

// ArchivePath maps n to its archive entry, e.g. ansible/module_utils/basic.py
// or ansible/module_utils/common/__init__.py for packages.
func ArchivePath(n Name, isPackage bool) string {
	parts := n.Clone()
	if isPackage {
		parts = append(parts, PackageInit)
	}
	return path.Join(parts...) + SourceSuffix
}
