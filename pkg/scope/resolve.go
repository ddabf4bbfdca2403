package scope

import (
	"github.com/odvcencio/gotreesitter"

	ts "github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

// TypeInfo is the answer to a type query at a position.
type TypeInfo struct {
	Text  string
	Type  model.SymbolType
	Range model.Range
	// Symbol is set when the position is on a declaration name.
	Symbol *Symbol
}

var expressionKinds = map[string]bool{
	ts.KindIdentifier:      true,
	ts.KindAttribute:       true,
	ts.KindCall:            true,
	ts.KindBinaryOperator:  true,
	ts.KindUnaryOperator:   true,
	ts.KindParenthesized:   true,
	ts.KindInteger:         true,
	ts.KindFloat:           true,
	ts.KindString:          true,
	ts.KindTrue:            true,
	ts.KindFalse:           true,
	ts.KindArray:           true,
	ts.KindDictionary:      true,
	ts.KindName:            true,
}

// TypeAt returns the type of the innermost expression or declaration under
// pos, which is in byte columns. ok is false when nothing known is there.
func (t *Table) TypeAt(pos model.Position) (TypeInfo, bool) {
	path := ts.PathAt(t.tree, ts.PositionPoint(pos))
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		kind := ts.Kind(node, t.lang)
		if !expressionKinds[kind] {
			continue
		}
		start, _ := ts.Span(node)
		if kind == ts.KindIdentifier || kind == ts.KindName {
			if sym, ok := t.SymbolAt(start); ok && sym.NameStart == start {
				if !sym.Type.Known() {
					return TypeInfo{}, false
				}
				return t.info(node, sym.Type, sym), true
			}
		}
		if kind == ts.KindName {
			continue
		}
		typ := t.Infer(t.ScopeAt(start).ID, node)
		if typ.Known() {
			return t.info(node, typ, nil), true
		}
	}
	return TypeInfo{}, false
}

func (t *Table) info(node *gotreesitter.Node, typ model.SymbolType, sym *Symbol) TypeInfo {
	return TypeInfo{
		Text:   ts.Text(node, t.src),
		Type:   typ,
		Symbol: sym,
		Range: model.Range{
			Start: ts.PointPosition(node.StartPoint()),
			End:   ts.PointPosition(node.EndPoint()),
		},
	}
}

// Resolve returns the type name resolves to at offset, following the same
// fallbacks as expression inference.
func (t *Table) Resolve(name string, offset uint32) model.SymbolType {
	return t.resolveName(t.ScopeAt(offset).ID, name, offset)
}
