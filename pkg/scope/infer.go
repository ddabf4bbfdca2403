package scope

import (
	"github.com/odvcencio/gotreesitter"

	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	ts "github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

const selfName = "self"

// Infer returns the static type of the expression node as seen from scope.
// Expressions the engine does not model yield model.Unknown.
func (t *Table) Infer(scope ID, node *gotreesitter.Node) model.SymbolType {
	if node == nil {
		return model.Unknown
	}
	kind := ts.Kind(node, t.lang)
	if name, ok := ts.LiteralNodeTypes[kind]; ok {
		return model.ParseSymbolType(name)
	}

	switch kind {
	case ts.KindIdentifier:
		name := ts.Text(node, t.src)
		if name == selfName {
			return t.selfType()
		}
		start, _ := ts.Span(node)
		return t.resolveName(scope, name, start)
	case selfName:
		return t.selfType()
	case ts.KindAttribute:
		return t.inferAttribute(scope, node)
	case ts.KindCall:
		return t.inferCall(scope, node)
	case ts.KindBinaryOperator:
		return t.inferBinary(scope, node)
	case ts.KindUnaryOperator:
		return t.inferUnary(scope, node)
	case ts.KindParenthesized:
		operands := ts.Operands(node, t.lang)
		if len(operands) == 0 {
			return model.Unknown
		}
		return t.Infer(scope, operands[0])
	default:
		return model.Unknown
	}
}

func (t *Table) selfType() model.SymbolType {
	if t.BaseClass == "" {
		return model.Unknown
	}
	return model.Object(t.BaseClass)
}

// resolveName performs the lexical lookup, then falls back to properties of
// the base class and singletons of the global scope.
func (t *Table) resolveName(scope ID, name string, offset uint32) model.SymbolType {
	if sym, ok := t.Lookup(scope, name, offset); ok {
		return sym.Type
	}
	if t.BaseClass != "" {
		if typ, ok := t.catalog.PropertyType(t.BaseClass, name); ok {
			return typ
		}
	}
	if typ, ok := t.catalog.PropertyType(catalog.GlobalScope, name); ok {
		return typ
	}
	return model.Unknown
}

// classOf maps a type to the catalog class that describes its members.
// Typed arrays share the members of Array.
func (t *Table) classOf(typ model.SymbolType) string {
	key := typ.String()
	if (typ.Tag == model.TagArray || typ.Tag == model.TagObjectArray) && !t.catalog.HasClass(key) {
		return model.KindArray.String()
	}
	return key
}

// inferAttribute folds an attribute chain left to right. The head is an
// instance when it has a type and a class name otherwise.
func (t *Table) inferAttribute(scope ID, node *gotreesitter.Node) model.SymbolType {
	parts := ts.Operands(node, t.lang)
	if len(parts) < 2 {
		return model.Unknown
	}

	head := parts[0]
	current := model.Unknown
	className := ""
	switch ts.Kind(head, t.lang) {
	case ts.KindIdentifier:
		current = t.Infer(scope, head)
		if !current.Known() {
			className = ts.Text(head, t.src)
		}
	default:
		current = t.Infer(scope, head)
	}
	if !current.Known() && className == "" {
		return model.Unknown
	}

	for _, part := range parts[1:] {
		if className != "" {
			current = t.classMember(scope, className, part)
			className = ""
		} else {
			current = t.instanceMember(current, part)
		}
		if !current.Known() {
			return model.Unknown
		}
	}
	return current
}

// classMember resolves ClassName.CONSTANT and ClassName.method().
func (t *Table) classMember(scope ID, className string, part *gotreesitter.Node) model.SymbolType {
	switch ts.Kind(part, t.lang) {
	case ts.KindIdentifier, ts.KindName:
		literal, ok := t.catalog.Constant(className, ts.Text(part, t.src))
		if !ok {
			return model.Unknown
		}
		return t.inferLiteral(literal)
	case ts.KindAttributeCall:
		method := ts.Text(ts.FirstChildOfKind(part, t.lang, ts.KindIdentifier), t.src)
		if method == "new" && t.catalog.HasClass(className) {
			return model.Object(className)
		}
		typ, _ := t.catalog.CallableReturnType(className, method)
		return typ
	default:
		return model.Unknown
	}
}

// instanceMember resolves value.property and value.method().
func (t *Table) instanceMember(receiver model.SymbolType, part *gotreesitter.Node) model.SymbolType {
	class := t.classOf(receiver)
	switch ts.Kind(part, t.lang) {
	case ts.KindIdentifier, ts.KindName:
		typ, _ := t.catalog.PropertyType(class, ts.Text(part, t.src))
		return typ
	case ts.KindAttributeCall:
		method := ts.Text(ts.FirstChildOfKind(part, t.lang, ts.KindIdentifier), t.src)
		typ, _ := t.catalog.CallableReturnType(class, method)
		return typ
	default:
		return model.Unknown
	}
}

// inferLiteral evaluates a catalog constant by parsing its literal text and
// inferring it against an empty table.
func (t *Table) inferLiteral(literal string) model.SymbolType {
	if t.literals == nil {
		parser, err := ts.NewParser()
		if err != nil {
			return model.Unknown
		}
		t.literals = parser
	}
	tree, node, src, err := t.literals.ParseExpression(literal)
	if err != nil {
		return model.Unknown
	}
	defer tree.Release()

	scratch := newTable(tree.RootNode(), t.literals.Language(), src, t.catalog)
	scratch.literals = t.literals
	return scratch.Infer(scratch.root, node)
}

func (t *Table) inferCall(scope ID, node *gotreesitter.Node) model.SymbolType {
	callee := node.Child(0)
	if ts.Kind(callee, t.lang) != ts.KindIdentifier {
		return model.Unknown
	}
	name := ts.Text(callee, t.src)

	if typ, ok := t.catalog.ConstructorType(name); ok {
		return typ
	}
	if fn, ok := t.Functions[name]; ok {
		return fn.ReturnType
	}

	owner := t.BaseClass
	if owner == "" {
		owner = catalog.GlobalScope
	}
	typ, ok := t.catalog.CallableReturnType(owner, name)
	if !ok {
		return model.Unknown
	}
	if typ == model.GenericSentinel {
		args := ts.Operands(ts.FieldOrChild(node, t.lang, "arguments", ts.KindArguments), t.lang)
		if len(args) > 0 {
			return t.Infer(scope, args[0])
		}
	}
	return typ
}

func (t *Table) inferBinary(scope ID, node *gotreesitter.Node) model.SymbolType {
	left := ts.Field(node, t.lang, "left")
	right := ts.Field(node, t.lang, "right")
	op := ts.Field(node, t.lang, "op")
	if (left == nil || right == nil || op == nil) && node.ChildCount() == 3 {
		left, op, right = node.Child(0), node.Child(1), node.Child(2)
	}
	if left == nil || right == nil || op == nil {
		return model.Unknown
	}

	lt := t.Infer(scope, left)
	rt := t.Infer(scope, right)
	if !lt.Known() || !rt.Known() {
		return model.Unknown
	}
	token := ts.Text(op, t.src)
	if typ, ok := t.catalog.BinaryOperatorResultType(lt.String(), token, rt); ok {
		return typ
	}
	if ts.BooleanOperators[token] {
		return model.Variant(model.KindBool)
	}
	return model.Unknown
}

func (t *Table) inferUnary(scope ID, node *gotreesitter.Node) model.SymbolType {
	if node.ChildCount() < 2 {
		return model.Unknown
	}
	op := ts.Field(node, t.lang, "op")
	if op == nil {
		op = node.Child(0)
	}
	operand := node.Child(node.ChildCount() - 1)

	typ := t.Infer(scope, operand)
	if !typ.Known() {
		return model.Unknown
	}
	token := ts.Text(op, t.src)
	if res, ok := t.catalog.UnaryOperatorResultType(typ.String(), token); ok {
		return res
	}
	if ts.BooleanOperators[token] {
		return model.Variant(model.KindBool)
	}
	return model.Unknown
}
