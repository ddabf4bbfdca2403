// Package treesitter wraps gotreesitter for GDScript: grammar lookup, full and
// incremental parsing, and the small set of node helpers the resolver needs.
package treesitter

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gotreesitter"
	"github.com/odvcencio/gotreesitter/grammars"
)

// LanguageName is the grammar name registered for .gd files.
const LanguageName = "gdscript"

// Parser is not safe for concurrent use; callers own one per goroutine or
// serialize access.
type Parser struct {
	entry  grammars.LangEntry
	lang   *gotreesitter.Language
	parser *gotreesitter.Parser
}

// Edit is one tree edit. AtEOF marks edits that started at the end of the
// previous text.
type Edit struct {
	gotreesitter.InputEdit
	AtEOF bool
}

func NewParser() (*Parser, error) {
	entry := grammars.DetectLanguage("script.gd")
	if entry == nil {
		return nil, fmt.Errorf("%s grammar is not registered", LanguageName)
	}
	if !strings.EqualFold(entry.Name, LanguageName) {
		return nil, fmt.Errorf("script.gd resolved to %q, want %s", entry.Name, LanguageName)
	}
	if entry.Language == nil {
		return nil, fmt.Errorf("language loader is required for %q", entry.Name)
	}

	lang := entry.Language()
	if lang == nil {
		return nil, fmt.Errorf("language loader returned nil for %q", entry.Name)
	}

	return &Parser{
		entry:  *entry,
		lang:   lang,
		parser: gotreesitter.NewParser(lang),
	}, nil
}

func (p *Parser) Language() *gotreesitter.Language {
	return p.lang
}

// Parse builds a tree from scratch. Empty input yields an empty tree.
func (p *Parser) Parse(src []byte) (*gotreesitter.Tree, error) {
	if len(src) == 0 {
		return gotreesitter.NewTree(nil, src, p.lang), nil
	}

	var tree *gotreesitter.Tree
	var err error
	if p.entry.TokenSourceFactory != nil {
		if ts := p.entry.TokenSourceFactory(src, p.lang); ts != nil {
			tree, err = p.parser.ParseWithTokenSource(src, ts)
		}
	}
	if tree == nil && err == nil {
		tree, err = p.parser.Parse(src)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", LanguageName, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("parse %s: parser returned no tree", LanguageName)
	}
	return tree, nil
}

// Reparse applies edits to old in order and reparses src using old as a hint.
// It falls back to a full parse when the incremental result is unusable.
// old must not be used by the caller afterwards unless it is the returned tree.
func (p *Parser) Reparse(src []byte, old *gotreesitter.Tree, edits []Edit) (*gotreesitter.Tree, error) {
	if old == nil || old.RootNode() == nil || len(src) == 0 {
		return p.Parse(src)
	}

	full := false
	for _, edit := range edits {
		old.Edit(edit.InputEdit)
		if edit.AtEOF {
			// Appends/truncations at EOF can produce unstable incremental trees
			// with some token-source grammars.
			full = true
		}
	}
	if full || len(edits) == 0 {
		return p.Parse(src)
	}

	var tree *gotreesitter.Tree
	var err error
	if p.entry.TokenSourceFactory != nil {
		if ts := p.entry.TokenSourceFactory(src, p.lang); ts != nil {
			tree, err = p.parser.ParseIncrementalWithTokenSource(src, old, ts)
		}
	}
	if tree == nil && err == nil {
		tree, err = p.parser.ParseIncremental(src, old)
	}
	if err != nil || tree == nil || tree.RootNode() == nil {
		return p.Parse(src)
	}
	return tree, nil
}

// ParseExpression parses text as a one-line script and returns its first
// expression node, used to evaluate catalog constant literals.
func (p *Parser) ParseExpression(text string) (*gotreesitter.Tree, *gotreesitter.Node, []byte, error) {
	src := []byte(strings.TrimSpace(text) + "\n")
	tree, err := p.Parse(src)
	if err != nil {
		return nil, nil, nil, err
	}
	stmt := FirstChildOfKind(tree.RootNode(), p.lang, "expression_statement")
	if stmt == nil || stmt.ChildCount() == 0 {
		tree.Release()
		return nil, nil, nil, fmt.Errorf("%q is not an expression", text)
	}
	return tree, stmt.Child(0), src, nil
}
