package archive

import (
	"fmt"

	"modpack/internal/engine/module"
)

const namespaceInit = "from pkgutil import extend_path\n__path__=extend_path(__path__,__name__)\n"

// SyntheticRoots returns the ansible and ansible.module_utils packages every
// archive carries, whatever the closure found.
func SyntheticRoots(version, author string) []module.Resolved {
	top := namespaceInit + fmt.Sprintf("__version__=%q\n__author__=%q\n", version, author)
	return []module.Resolved{
		module.NewResolved(module.CoreRoot.Parent(), []byte(top), true),
		module.NewResolved(module.CoreRoot, []byte(namespaceInit), true),
	}
}

// EntryModule turns the entry script into an archive entry at
// <dotted/name>.py.
func EntryModule(fqn string, source []byte) module.Resolved {
	return module.NewResolved(module.Parse(fqn), source, false)
}
