package scope

import (
	"strings"

	"github.com/odvcencio/gotreesitter"

	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	ts "github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

// Build walks tree once, depth first, and returns its scope table. Types of
// declarations are inferred during the walk, so an initializer only sees
// declarations that precede it. Afterwards every file-scope declaration is
// made visible from the start of the file.
func Build(tree *gotreesitter.Tree, lang *gotreesitter.Language, src []byte, cat *catalog.Catalog) *Table {
	var root *gotreesitter.Node
	if tree != nil {
		root = tree.RootNode()
	}
	t := newTable(root, lang, src, cat)
	if root == nil {
		return t
	}

	t.walk(root, t.root)

	fileScope := t.Root()
	for i := range fileScope.Symbols {
		fileScope.Symbols[i].DeclOffset = 0
	}
	return t
}

func (t *Table) walk(node *gotreesitter.Node, scope ID) {
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch ts.Kind(child, t.lang) {
		case ts.KindVariableStatement:
			t.declare(scope, child, SymbolVariable)
		case ts.KindConstStatement:
			t.declare(scope, child, SymbolConstant)
		case ts.KindFunctionDefinition:
			t.function(scope, child)
		case ts.KindIfStatement:
			t.branches(scope, child)
		case ts.KindForStatement:
			t.forLoop(scope, child)
		case ts.KindWhileStatement:
			if body := ts.Field(child, t.lang, "body"); body != nil {
				t.walk(body, t.newScope(body, ScopeLoop, scope))
			}
		case ts.KindMatchStatement:
			t.matchArms(scope, child)
		case ts.KindExtendsStatement:
			if scope == t.root {
				t.BaseClass = extendsTarget(child, t.src)
			}
		}
	}
}

func (t *Table) declare(scope ID, stmt *gotreesitter.Node, kind SymbolKind) {
	nameNode := ts.Field(stmt, t.lang, "name")
	if nameNode == nil {
		return
	}
	sym := t.symbolFor(nameNode, kind)
	_, sym.DeclOffset = ts.Span(stmt)

	typeNode := ts.Field(stmt, t.lang, "type")
	if isAnnotation(typeNode, t.lang, t.src) {
		sym.Type = model.ParseAnnotation(ts.Text(typeNode, t.src))
		sym.StaticTyped = true
	} else if value := ts.Field(stmt, t.lang, "value"); value != nil {
		sym.Type = t.Infer(scope, value)
	}
	t.add(scope, sym)
}

func (t *Table) function(scope ID, fn *gotreesitter.Node) {
	body := ts.Field(fn, t.lang, "body")
	if body == nil {
		return
	}
	id := t.newScope(body, ScopeFunction, scope)
	bodyStart, _ := ts.Span(body)

	decl := Function{Name: ts.Text(ts.Field(fn, t.lang, "name"), t.src)}
	if ret := ts.Field(fn, t.lang, "return_type"); ret != nil {
		decl.ReturnType = model.ParseAnnotation(ts.Text(ret, t.src))
	}

	params := ts.Field(fn, t.lang, "parameters")
	for _, param := range ts.Operands(params, t.lang) {
		kind := ts.Kind(param, t.lang)
		ident := param
		if kind != ts.KindIdentifier {
			ident = ts.FirstChildOfKind(param, t.lang, ts.KindIdentifier)
		}
		if ident == nil {
			continue
		}
		decl.Parameters = append(decl.Parameters, ts.Text(ident, t.src))
		if !ts.ParameterNodeTypes[kind] {
			continue
		}

		sym := t.symbolFor(ident, SymbolParameter)
		sym.DeclOffset = bodyStart
		typeNode := ts.Field(param, t.lang, "type")
		if isAnnotation(typeNode, t.lang, t.src) {
			sym.Type = model.ParseAnnotation(ts.Text(typeNode, t.src))
			sym.StaticTyped = true
		} else if value := ts.Field(param, t.lang, "value"); value != nil {
			sym.Type = t.Infer(scope, value)
		}
		t.add(id, sym)
	}
	if decl.Name != "" {
		t.Functions[decl.Name] = decl
	}

	t.walk(body, id)
}

func (t *Table) branches(scope ID, stmt *gotreesitter.Node) {
	if body := ts.Field(stmt, t.lang, "body"); body != nil {
		t.walk(body, t.newScope(body, ScopeBranch, scope))
	}
	for i := 0; i < stmt.ChildCount(); i++ {
		clause := stmt.Child(i)
		if !ts.BranchNodeTypes[ts.Kind(clause, t.lang)] {
			continue
		}
		if body := ts.FieldOrChild(clause, t.lang, "body", ts.KindBody); body != nil {
			t.walk(body, t.newScope(body, ScopeBranch, scope))
		}
	}
}

func (t *Table) forLoop(scope ID, stmt *gotreesitter.Node) {
	body := ts.Field(stmt, t.lang, "body")
	if body == nil {
		return
	}
	id := t.newScope(body, ScopeLoop, scope)

	if left := ts.Field(stmt, t.lang, "left"); left != nil {
		sym := t.symbolFor(left, SymbolLoopVariable)
		sym.DeclOffset, _ = ts.Span(body)
		if typeNode := ts.Field(stmt, t.lang, "type"); isAnnotation(typeNode, t.lang, t.src) {
			sym.Type = model.ParseAnnotation(ts.Text(typeNode, t.src))
			sym.StaticTyped = true
		} else {
			sym.Type = t.elementType(scope, ts.Field(stmt, t.lang, "right"))
		}
		t.add(id, sym)
	}

	t.walk(body, id)
}

// elementType is the type of the loop variable when iterating over iter.
func (t *Table) elementType(scope ID, iter *gotreesitter.Node) model.SymbolType {
	if iter == nil {
		return model.Unknown
	}
	if ts.Kind(iter, t.lang) == ts.KindCall && ts.Text(iter.Child(0), t.src) == "range" {
		return model.Variant(model.KindInt)
	}
	typ := t.Infer(scope, iter)
	switch {
	case typ.Tag == model.TagArray || typ.Tag == model.TagObjectArray:
		return typ.Element()
	case typ.IsVariant(model.KindInt), typ.IsVariant(model.KindString):
		return typ
	case typ.IsVariant(model.KindPackedStringArray):
		return model.Variant(model.KindString)
	default:
		return model.Unknown
	}
}

func (t *Table) matchArms(scope ID, stmt *gotreesitter.Node) {
	arms := ts.FieldOrChild(stmt, t.lang, "body", ts.KindMatchBody)
	if arms == nil {
		return
	}
	for i := 0; i < arms.ChildCount(); i++ {
		section := arms.Child(i)
		if ts.Kind(section, t.lang) != ts.KindPatternSection {
			continue
		}
		if body := ts.FieldOrChild(section, t.lang, "body", ts.KindBody); body != nil {
			t.walk(body, t.newScope(body, ScopeMatchArm, scope))
		}
	}
}

func (t *Table) symbolFor(name *gotreesitter.Node, kind SymbolKind) Symbol {
	start, end := ts.Span(name)
	return Symbol{
		Name:         ts.Text(name, t.src),
		Kind:         kind,
		NameStart:    start,
		NameEnd:      end,
		HintPosition: ts.PointPosition(name.EndPoint()),
	}
}

func (t *Table) add(scope ID, sym Symbol) {
	if s, ok := t.scopes[scope]; ok {
		s.Symbols = append(s.Symbols, sym)
	}
}

// isAnnotation reports whether a type field holds a written type rather than
// the := inference marker.
func isAnnotation(typeNode *gotreesitter.Node, lang *gotreesitter.Language, src []byte) bool {
	if typeNode == nil || ts.Kind(typeNode, lang) == ts.KindInferredType {
		return false
	}
	text := strings.TrimSpace(ts.Text(typeNode, src))
	return text != "" && text != ":="
}

// extendsTarget returns the class named by an extends statement. Script
// paths are not classes and yield "".
func extendsTarget(stmt *gotreesitter.Node, src []byte) string {
	text := strings.TrimSpace(ts.Text(stmt, src))
	text = strings.TrimSpace(strings.TrimPrefix(text, "extends"))
	if text == "" || strings.ContainsAny(text[:1], `"'`) {
		return ""
	}
	return text
}
