package parser

import (
	"strings"

	"modpack/internal/engine/module"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const (
	coreImportPrefix       = "ansible.module_utils"
	collectionImportPrefix = "ansible_collections."
	collectionLibrary      = "plugins.module_utils"
	// sixShimName is recorded verbatim; six builds its submodules at runtime.
	sixShimName = "_six"
)

// PythonImportFinder collects references to library modules from import
// statements. Top-level statements (depth 1) are required references, any
// statement nested in a block, function or class body is optional.
type PythonImportFinder struct{}

func (f *PythonImportFinder) Find(ctx *ExtractionContext, root *sitter.Node) {
	engine := NewExtractorEngine(map[string]NodeHandler{
		"import_statement":      f.extractImport,
		"import_from_statement": f.extractFromImport,
	})
	engine.Walk(ctx, root, 0)
}

func isOptionalDepth(depth int) bool {
	return depth != 1
}

func (f *PythonImportFinder) extractImport(ctx *ExtractionContext, node *sitter.Node, depth int) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		var dotted string
		switch child.Kind() {
		case "dotted_name":
			dotted = ctx.Text(child)
		case "aliased_import":
			dotted = ctx.Text(child.ChildByFieldName("name"))
		default:
			continue
		}

		if strings.HasPrefix(dotted, coreImportPrefix+".") || strings.HasPrefix(dotted, collectionImportPrefix) {
			ctx.Deps.add(module.Parse(dotted), isOptionalDepth(depth))
		}
	}
	return true
}

func (f *PythonImportFinder) extractFromImport(ctx *ExtractionContext, node *sitter.Node, depth int) bool {
	level, base := 0, ""
	if moduleNode := node.ChildByFieldName("module_name"); moduleNode != nil {
		text := ctx.Text(moduleNode)
		if moduleNode.Kind() == "relative_import" {
			trimmed := strings.TrimLeft(text, ".")
			level = len(text) - len(trimmed)
			base = trimmed
		} else {
			base = text
		}
	}

	names := f.importedNames(ctx, node)
	if len(names) == 0 {
		return true
	}

	if names[0] == sixShimName {
		ctx.Deps.add(module.Name{sixShimName}, false)
		return true
	}

	nodeModule := resolveRelative(ctx.ModuleFQN, ctx.IsPackageInit, level, base)
	if !isLibraryBase(nodeModule) {
		return true
	}

	parent := module.Parse(nodeModule)
	for _, name := range names {
		ctx.Deps.add(parent.Child(name), isOptionalDepth(depth))
	}
	return true
}

// importedNames returns the names listed after the import keyword, "*" for
// a wildcard import.
func (f *PythonImportFinder) importedNames(ctx *ExtractionContext, node *sitter.Node) []string {
	var names []string
	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !afterImport {
			afterImport = child.Kind() == "import"
			continue
		}
		switch child.Kind() {
		case "dotted_name", "identifier":
			names = append(names, ctx.Text(child))
		case "aliased_import":
			names = append(names, ctx.Text(child.ChildByFieldName("name")))
		case "wildcard_import":
			names = append(names, "*")
		}
	}
	return names
}

// resolveRelative expands a from-import base with level leading dots against
// the importing module's name. A package initializer is its own package, so
// one fewer segment is stripped.
func resolveRelative(moduleFQN string, isPackageInit bool, level int, base string) string {
	if level == 0 || moduleFQN == "" {
		return base
	}

	parts := strings.Split(moduleFQN, ".")
	strip := level
	if isPackageInit {
		strip = level - 1
	}
	keep := len(parts) - strip
	if keep < 0 {
		keep = 0
	}
	parts = parts[:keep]
	if base != "" {
		parts = append(parts, base)
	}
	return strings.Join(parts, ".")
}

func isLibraryBase(nodeModule string) bool {
	if nodeModule == coreImportPrefix || strings.HasPrefix(nodeModule, coreImportPrefix+".") {
		return true
	}
	if strings.HasPrefix(nodeModule, collectionImportPrefix) {
		return strings.HasSuffix(nodeModule, collectionLibrary) ||
			strings.Contains(nodeModule, "."+collectionLibrary+".")
	}
	return false
}
