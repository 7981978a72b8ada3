package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// GrammarLoader owns the compiled grammars used by the extractor. Only the
// Python grammar is needed to analyze module sources.
type GrammarLoader struct {
	languages map[string]*sitter.Language
}

func NewGrammarLoader() *GrammarLoader {
	return &GrammarLoader{
		languages: map[string]*sitter.Language{
			"python": sitter.NewLanguage(tree_sitter_python.Language()),
		},
	}
}

// Language returns the grammar registered under lang, or nil.
func (gl *GrammarLoader) Language(lang string) *sitter.Language {
	return gl.languages[lang]
}
