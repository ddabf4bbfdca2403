// Package hints renders inlay hints for a GDScript document: inferred types
// after declaration names and parameter names before call arguments.
package hints

import (
	"sort"

	"github.com/odvcencio/gotreesitter"

	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	ts "github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
	"github.com/shadr/godot-sidekick-lsp/pkg/scope"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

// Kind values match the LSP InlayHintKind enumeration.
type Kind int

const (
	KindType      Kind = 1
	KindParameter Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindParameter:
		return "parameter"
	default:
		return "unknown"
	}
}

// Hint is one inlay hint. Position uses byte columns.
type Hint struct {
	Position model.Position `json:"position"`
	Label    string         `json:"label"`
	Kind     Kind           `json:"kind"`
}

type Options struct {
	VariableTypes  bool `yaml:"variable_types"`
	ParameterNames bool `yaml:"parameter_names"`
}

func DefaultOptions() Options {
	return Options{VariableTypes: true, ParameterNames: true}
}

// Collect builds the scope table of snap and returns the hints whose
// position falls inside r, ordered by position.
func Collect(snap store.Snapshot, cat *catalog.Catalog, r model.Range, opts Options) []Hint {
	table := scope.FromSnapshot(snap, cat)
	var out []Hint
	if opts.VariableTypes {
		out = append(out, TypeHints(table, r)...)
	}
	if opts.ParameterNames {
		out = append(out, ParameterHints(snap, table, cat, r)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position.Less(out[j].Position) })
	return out
}

// TypeHints returns ": T" after every declaration whose type was inferred.
func TypeHints(table *scope.Table, r model.Range) []Hint {
	var out []Hint
	for _, sym := range table.AllSymbols() {
		if sym.StaticTyped || !sym.Type.Known() {
			continue
		}
		if !model.RangeContains(r, sym.HintPosition) {
			continue
		}
		out = append(out, Hint{
			Position: sym.HintPosition,
			Label:    ": " + sym.Type.String(),
			Kind:     KindType,
		})
	}
	return out
}

// ParameterHints returns "name: " before positional arguments of calls to
// functions declared in the file, methods of the base class and global
// functions. Arguments spelled like their parameter get no hint.
func ParameterHints(snap store.Snapshot, table *scope.Table, cat *catalog.Catalog, r model.Range) []Hint {
	if snap.Tree == nil {
		return nil
	}
	src := snap.Source()
	var out []Hint
	gotreesitter.Walk(snap.Tree.RootNode(), func(node *gotreesitter.Node, depth int) gotreesitter.WalkAction {
		if ts.Kind(node, snap.Language) != ts.KindCall {
			return gotreesitter.WalkContinue
		}
		callee := node.Child(0)
		if ts.Kind(callee, snap.Language) != ts.KindIdentifier {
			return gotreesitter.WalkContinue
		}
		names := parameterNames(table, cat, ts.Text(callee, src))
		if len(names) == 0 {
			return gotreesitter.WalkContinue
		}

		args := ts.Operands(ts.FieldOrChild(node, snap.Language, "arguments", ts.KindArguments), snap.Language)
		for i, arg := range args {
			if i >= len(names) {
				break
			}
			if ts.Text(arg, src) == names[i] {
				continue
			}
			pos := ts.PointPosition(arg.StartPoint())
			if !model.RangeContains(r, pos) {
				continue
			}
			out = append(out, Hint{Position: pos, Label: names[i] + ": ", Kind: KindParameter})
		}
		return gotreesitter.WalkContinue
	})
	return out
}

func parameterNames(table *scope.Table, cat *catalog.Catalog, name string) []string {
	if fn, ok := table.Functions[name]; ok {
		return fn.Parameters
	}
	owner := table.BaseClass
	if owner == "" {
		owner = catalog.GlobalScope
	}
	method, ok := cat.Callable(owner, name)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(method.Parameters))
	for _, p := range method.Parameters {
		names = append(names, p.Name)
	}
	return names
}
