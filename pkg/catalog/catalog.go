// Package catalog holds the builtin class knowledge base: properties, methods,
// constructors, constants, operators and inheritance edges of engine classes.
// A Catalog is immutable after loading and safe for concurrent use.
package catalog

import (
	"sort"
	"strings"

	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

// GlobalScope is the pseudo-class holding free functions and singletons.
const GlobalScope = "@GlobalScope"

type Parameter struct {
	Name string           `msgpack:"name"`
	Type model.SymbolType `msgpack:"type"`
}

type Method struct {
	Name       string           `msgpack:"name"`
	ReturnType model.SymbolType `msgpack:"return_type"`
	Parameters []Parameter      `msgpack:"parameters,omitempty"`
}

type ClassInfo struct {
	Name       string                      `msgpack:"name"`
	Parent     string                      `msgpack:"parent,omitempty"`
	Methods    map[string]Method           `msgpack:"methods,omitempty"`
	Properties map[string]model.SymbolType `msgpack:"properties,omitempty"`
	// Constructor is the first declared constructor, if any.
	Constructor *Method `msgpack:"constructor,omitempty"`
	// Constants maps a constant name to its literal source text.
	Constants map[string]string `msgpack:"constants,omitempty"`
	// Operators is keyed by operatorKey.
	Operators map[string]model.SymbolType `msgpack:"operators,omitempty"`
}

type Catalog struct {
	classes map[string]*ClassInfo
}

func newCatalog(classes map[string]*ClassInfo) *Catalog {
	if classes == nil {
		classes = map[string]*ClassInfo{}
	}
	return &Catalog{classes: classes}
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.classes)
}

// Names returns the sorted class names.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Class(name string) (*ClassInfo, bool) {
	if c == nil {
		return nil, false
	}
	info, ok := c.classes[name]
	return info, ok
}

// HasClass reports whether name is a catalogued class.
func (c *Catalog) HasClass(name string) bool {
	_, ok := c.Class(name)
	return ok
}

// lineage calls visit for class and each ancestor until visit returns true.
// Unknown parents end the walk; the step bound stops malformed cycles.
func (c *Catalog) lineage(class string, visit func(*ClassInfo) bool) bool {
	for steps := 0; steps <= len(c.classes); steps++ {
		info, ok := c.classes[class]
		if !ok {
			return false
		}
		if visit(info) {
			return true
		}
		if info.Parent == "" {
			return false
		}
		class = info.Parent
	}
	return false
}

// PropertyType looks up a property on class or its ancestors.
func (c *Catalog) PropertyType(class, name string) (model.SymbolType, bool) {
	if c == nil {
		return model.Unknown, false
	}
	var found model.SymbolType
	ok := c.lineage(class, func(info *ClassInfo) bool {
		t, ok := info.Properties[name]
		if ok {
			found = t
		}
		return ok
	})
	return found, ok
}

// Callable finds a method on class or its ancestors, retrying once against
// the global scope when the chain is exhausted.
func (c *Catalog) Callable(class, name string) (Method, bool) {
	if c == nil {
		return Method{}, false
	}
	var found Method
	ok := c.lineage(class, func(info *ClassInfo) bool {
		m, ok := info.Methods[name]
		if ok {
			found = m
		}
		return ok
	})
	if ok {
		return found, true
	}
	if class != GlobalScope {
		return c.Callable(GlobalScope, name)
	}
	return Method{}, false
}

// CallableReturnType is Callable reduced to the return type.
func (c *Catalog) CallableReturnType(class, name string) (model.SymbolType, bool) {
	m, ok := c.Callable(class, name)
	if !ok {
		return model.Unknown, false
	}
	return m.ReturnType, true
}

// ConstructorType returns the return type of class's first constructor.
func (c *Catalog) ConstructorType(class string) (model.SymbolType, bool) {
	info, ok := c.Class(class)
	if !ok || info.Constructor == nil {
		return model.Unknown, false
	}
	return info.Constructor.ReturnType, true
}

// Constant returns the literal source text of a class constant. Constants
// are not inherited.
func (c *Catalog) Constant(class, name string) (string, bool) {
	info, ok := c.Class(class)
	if !ok {
		return "", false
	}
	value, ok := info.Constants[name]
	return value, ok
}

// BinaryOperatorResultType looks up left <op> right in left's operator table.
func (c *Catalog) BinaryOperatorResultType(left, op string, right model.SymbolType) (model.SymbolType, bool) {
	return c.operator(left, operatorKey(binaryOperatorName(op), right.String()))
}

// UnaryOperatorResultType looks up <op> operand in operand's operator table.
func (c *Catalog) UnaryOperatorResultType(operand, op string) (model.SymbolType, bool) {
	return c.operator(operand, operatorKey(unaryOperatorName(op), ""))
}

func (c *Catalog) operator(class, key string) (model.SymbolType, bool) {
	if c == nil {
		return model.Unknown, false
	}
	var found model.SymbolType
	ok := c.lineage(class, func(info *ClassInfo) bool {
		t, ok := info.Operators[key]
		if ok {
			found = t
		}
		return ok
	})
	return found, ok
}

func operatorKey(name, right string) string {
	return name + "|" + right
}

func binaryOperatorName(token string) string {
	return "operator " + normalizeOperator(token)
}

func unaryOperatorName(token string) string {
	switch token {
	case "-", "+":
		return "operator unary" + token
	default:
		return "operator " + normalizeOperator(token)
	}
}

// normalizeOperator maps keyword spellings onto the symbolic forms used in
// the engine's operator tables.
func normalizeOperator(token string) string {
	switch strings.TrimSpace(token) {
	case "and":
		return "&&"
	case "or":
		return "||"
	case "not":
		return "!"
	default:
		return strings.TrimSpace(token)
	}
}
