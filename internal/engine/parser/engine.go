package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for the import walker. depth is 0 for the
// module root and 1 for top-level statements.
// Returns true if the walker should not descend into the node's children.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node, depth int) bool

// ExtractionContext carries the state of one module scan.
type ExtractionContext struct {
	Source        []byte
	ModuleFQN     string
	IsPackageInit bool
	Deps          *Dependencies
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node, depth int) {
	if node == nil {
		return
	}

	if handler, ok := e.handlers[node.Kind()]; ok {
		if handler(ctx, node, depth) {
			return
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i), depth+1)
	}
}

// Text returns the source slice for node with all whitespace removed, which
// normalizes dotted names written across line continuations.
func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	raw := string(c.Source[node.StartByte():node.EndByte()])
	return strings.Join(strings.Fields(raw), "")
}
