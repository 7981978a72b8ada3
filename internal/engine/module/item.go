package module

import "strings"

// WorkItem is one pending resolution.
type WorkItem struct {
	Name Name
	// Ambiguous marks a from-import target that may be an attribute of its parent.
	Ambiguous bool
	// RedirectChild means an ancestor was redirected; missing packages become stubs.
	RedirectChild bool
	// Optional items are dropped silently when they cannot be located.
	Optional bool
	// Requester is the module whose source referenced Name.
	Requester string
}

// Less orders items by name, then flags (false first), then requester.
func (w WorkItem) Less(other WorkItem) bool {
	if c := w.Name.Compare(other.Name); c != 0 {
		return c < 0
	}
	if w.Ambiguous != other.Ambiguous {
		return !w.Ambiguous
	}
	if w.RedirectChild != other.RedirectChild {
		return !w.RedirectChild
	}
	if w.Optional != other.Optional {
		return !w.Optional
	}
	return strings.Compare(w.Requester, other.Requester) < 0
}

// Resolved is the terminal resolution of a WorkItem.
type Resolved struct {
	Name        Name
	Source      []byte
	IsPackage   bool
	ArchivePath string
	// Redirected is set when Source is a routing shim rather than located code.
	Redirected bool
}

// NewResolved fills in ArchivePath from the name and package flag.
func NewResolved(name Name, source []byte, isPackage bool) Resolved {
	return Resolved{
		Name:        name.Clone(),
		Source:      source,
		IsPackage:   isPackage,
		ArchivePath: ArchivePath(name, isPackage),
	}
}
