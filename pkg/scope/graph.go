// Package scope builds the lexical scope tree of a GDScript file and infers
// the static types of declarations and expressions against the catalog.
// A Table is built per query and never shared between requests.
package scope

import (
	"sort"

	"github.com/odvcencio/gotreesitter"

	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

// ScopeKind classifies the type of lexical scope.
type ScopeKind int

const (
	ScopeFile ScopeKind = iota
	ScopeFunction
	ScopeBranch
	ScopeLoop
	ScopeMatchArm
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFile:
		return "file"
	case ScopeFunction:
		return "function"
	case ScopeBranch:
		return "branch"
	case ScopeLoop:
		return "loop"
	case ScopeMatchArm:
		return "match_arm"
	default:
		return "unknown"
	}
}

// SymbolKind constants classify the type of a declaration.
type SymbolKind string

const (
	SymbolVariable     SymbolKind = "variable"
	SymbolConstant     SymbolKind = "constant"
	SymbolParameter    SymbolKind = "parameter"
	SymbolLoopVariable SymbolKind = "loop_variable"
)

// ID identifies a scope by the byte span of the body node it mirrors.
type ID struct {
	Start uint32
	End   uint32
}

// Symbol is one named declaration.
type Symbol struct {
	Name string
	Kind SymbolKind
	// DeclOffset is the first byte offset at which lookups see the symbol.
	DeclOffset uint32
	NameStart  uint32
	NameEnd    uint32
	// HintPosition is the end of the name, in byte columns.
	HintPosition model.Position
	// StaticTyped is set when Type comes from an annotation.
	StaticTyped bool
	Type        model.SymbolType
}

// Scope is a node of the scope tree. Parent is a key into the owning Table.
type Scope struct {
	ID      ID
	Kind    ScopeKind
	Parent  ID
	Symbols []Symbol
	root    bool
}

// IsRoot reports whether s is the file scope.
func (s *Scope) IsRoot() bool { return s.root }

// Function is a function declared in the file, kept for call hints.
type Function struct {
	Name       string
	Parameters []string
	ReturnType model.SymbolType
}

// Table is the scope tree of one file snapshot plus the state needed to
// infer types inside it.
type Table struct {
	// BaseClass is the class named by the file's extends statement.
	BaseClass string
	Functions map[string]Function

	scopes  map[ID]*Scope
	order   []ID
	root    ID
	catalog *catalog.Catalog
	src     []byte
	lang    *gotreesitter.Language
	tree    *gotreesitter.Node

	literals *treesitter.Parser
}

func newTable(root *gotreesitter.Node, lang *gotreesitter.Language, src []byte, cat *catalog.Catalog) *Table {
	t := &Table{
		Functions: map[string]Function{},
		scopes:    map[ID]*Scope{},
		catalog:   cat,
		src:       src,
		lang:      lang,
		tree:      root,
	}
	start, end := uint32(0), uint32(len(src))
	if root != nil {
		start, end = treesitter.Span(root)
	}
	t.root = ID{Start: start, End: end}
	t.scopes[t.root] = &Scope{ID: t.root, Kind: ScopeFile, root: true}
	t.order = append(t.order, t.root)
	return t
}

func (t *Table) newScope(body *gotreesitter.Node, kind ScopeKind, parent ID) ID {
	start, end := treesitter.Span(body)
	id := ID{Start: start, End: end}
	if _, exists := t.scopes[id]; exists {
		return id
	}
	t.scopes[id] = &Scope{ID: id, Kind: kind, Parent: parent}
	t.order = append(t.order, id)
	return id
}

// Root returns the file scope.
func (t *Table) Root() *Scope { return t.scopes[t.root] }

func (t *Table) Scope(id ID) (*Scope, bool) {
	s, ok := t.scopes[id]
	return s, ok
}

// Scopes returns every scope in creation order (outer before inner).
func (t *Table) Scopes() []*Scope {
	out := make([]*Scope, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.scopes[id])
	}
	return out
}

// ScopeAt returns the innermost scope whose span contains offset.
func (t *Table) ScopeAt(offset uint32) *Scope {
	best := t.Root()
	for _, id := range t.order {
		if id == t.root || offset < id.Start || offset > id.End {
			continue
		}
		if best.IsRoot() || id.End-id.Start <= best.ID.End-best.ID.Start {
			best = t.scopes[id]
		}
	}
	return best
}

func (t *Table) parentOf(s *Scope) (*Scope, bool) {
	if s.root {
		return nil, false
	}
	p, ok := t.scopes[s.Parent]
	return p, ok
}

// Lookup walks from scope to the root and returns the first declaration of
// name visible at offset. Within one scope the latest visible declaration wins.
func (t *Table) Lookup(scope ID, name string, offset uint32) (*Symbol, bool) {
	s, ok := t.scopes[scope]
	for ok {
		var found *Symbol
		for i := range s.Symbols {
			sym := &s.Symbols[i]
			if sym.Name == name && sym.DeclOffset <= offset {
				found = sym
			}
		}
		if found != nil {
			return found, true
		}
		s, ok = t.parentOf(s)
	}
	return nil, false
}

// Visible returns the declarations reachable from scope at offset, innermost
// first, with shadowed names omitted.
func (t *Table) Visible(scope ID, offset uint32) []Symbol {
	seen := map[string]bool{}
	var out []Symbol
	s, ok := t.scopes[scope]
	for ok {
		for i := len(s.Symbols) - 1; i >= 0; i-- {
			sym := s.Symbols[i]
			if sym.DeclOffset > offset || seen[sym.Name] {
				continue
			}
			seen[sym.Name] = true
			out = append(out, sym)
		}
		s, ok = t.parentOf(s)
	}
	return out
}

// SymbolAt returns the declaration whose name covers offset.
func (t *Table) SymbolAt(offset uint32) (*Symbol, bool) {
	for _, id := range t.order {
		s := t.scopes[id]
		for i := range s.Symbols {
			sym := &s.Symbols[i]
			if sym.NameStart <= offset && offset <= sym.NameEnd {
				return sym, true
			}
		}
	}
	return nil, false
}

// AllSymbols returns every declaration ordered by name position.
func (t *Table) AllSymbols() []Symbol {
	var out []Symbol
	for _, id := range t.order {
		out = append(out, t.scopes[id].Symbols...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NameStart < out[j].NameStart })
	return out
}
