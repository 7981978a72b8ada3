package parser

import (
	"fmt"
	"time"

	"modpack/internal/core/errors"
	"modpack/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Extractor parses Python module sources and returns the library modules they
// reference. It never executes the analyzed code. Safe for concurrent use.
type Extractor struct {
	pool   *ParserPool
	finder *PythonImportFinder
}

func NewExtractor(loader *GrammarLoader) (*Extractor, error) {
	lang := loader.Language("python")
	if lang == nil {
		return nil, errors.New(errors.CodeInternal, "python grammar not loaded")
	}
	return &Extractor{
		pool:   NewParserPool(lang),
		finder: &PythonImportFinder{},
	}, nil
}

// Extract scans source, the code of module moduleFQN. isPackageInit must be set
// when source is a package __init__ so relative imports resolve correctly.
func (e *Extractor) Extract(moduleFQN string, source []byte, isPackageInit bool) (*Dependencies, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues("python").Observe(time.Since(start).Seconds())
	}()

	sp := e.pool.Get()
	defer e.pool.Put(sp)

	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, parseError(moduleFQN, fmt.Errorf("parser returned no tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, parseError(moduleFQN, syntaxError(firstSyntaxError(root)))
	}
	if legacy := firstLegacyStatement(root); legacy != nil {
		pos := legacy.StartPosition()
		return nil, parseError(moduleFQN, fmt.Errorf("invalid syntax: Python 2 %s (line %d, column %d)", legacy.Kind(), pos.Row+1, pos.Column+1))
	}

	deps := newDependencies()
	e.finder.Find(&ExtractionContext{
		Source:        source,
		ModuleFQN:     moduleFQN,
		IsPackageInit: isPackageInit,
		Deps:          deps,
	}, root)
	return deps, nil
}

func parseError(moduleFQN string, cause error) error {
	name := moduleFQN
	if name == "" {
		name = "<unknown>"
	}
	err := errors.Wrap(cause, errors.CodeParseError, fmt.Sprintf("unable to import %s", name))
	return errors.AddContext(err, errors.CtxModule, name)
}

func firstSyntaxError(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstSyntaxError(node.Child(i)); found != nil {
			return found
		}
	}
	return node
}

// legacyStatements are grammar nodes only Python 2 accepts.
var legacyStatements = map[string]bool{
	"print_statement": true,
	"exec_statement":  true,
}

func firstLegacyStatement(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if legacyStatements[node.Kind()] {
		return node
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if found := firstLegacyStatement(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

func syntaxError(node *sitter.Node) error {
	if node == nil {
		return fmt.Errorf("invalid syntax")
	}
	pos := node.StartPosition()
	if node.IsMissing() {
		return fmt.Errorf("invalid syntax: missing %q (line %d, column %d)", node.Kind(), pos.Row+1, pos.Column+1)
	}
	return fmt.Errorf("invalid syntax (line %d, column %d)", pos.Row+1, pos.Column+1)
}
