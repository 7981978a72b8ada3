package parser

import (
	"sort"

	"modpack/internal/engine/module"
)

// Dependencies is the set of library modules referenced by one source file.
type Dependencies struct {
	names    map[string]module.Name
	optional map[string]bool
}

func newDependencies() *Dependencies {
	return &Dependencies{
		names:    make(map[string]module.Name),
		optional: make(map[string]bool),
	}
}

// add records name. A name seen in any nested scope stays optional even if it
// is also imported at top level.
func (d *Dependencies) add(name module.Name, optional bool) {
	key := name.String()
	if _, ok := d.names[key]; !ok {
		d.names[key] = name.Clone()
	}
	if optional {
		d.optional[key] = true
	}
}

// Names returns the referenced names in sorted order.
func (d *Dependencies) Names() []module.Name {
	keys := make([]string, 0, len(d.names))
	for k := range d.names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]module.Name, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.names[k].Clone())
	}
	return out
}

// IsOptional reports whether name belongs to the optional set.
func (d *Dependencies) IsOptional(name module.Name) bool {
	return d.optional[name.String()]
}

func (d *Dependencies) Len() int {
	return len(d.names)
}
