package scope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

func buildTable(t *testing.T, src string) *Table {
	t.Helper()
	parser, err := treesitter.NewParser()
	require.NoError(t, err)
	cat, err := catalog.Default()
	require.NoError(t, err)

	tree, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Release)
	return Build(tree, parser.Language(), []byte(src), cat)
}

// typesByName returns the inferred type of every declaration, keyed by name.
// Later declarations of the same name overwrite earlier ones.
func typesByName(table *Table) map[string]string {
	out := map[string]string{}
	for _, sym := range table.AllSymbols() {
		out[sym.Name] = sym.Type.String()
	}
	return out
}

func symbolsNamed(table *Table, name string) []Symbol {
	var out []Symbol
	for _, sym := range table.AllSymbols() {
		if sym.Name == name {
			out = append(out, sym)
		}
	}
	return out
}

func TestBuildLiteralTypes(t *testing.T) {
	table := buildTable(t, strings.Join([]string{
		"var i = 1",
		"var f = 1.5",
		"var s = \"x\"",
		"var b = true",
		"var a = [1, 2]",
		"var d = {}",
		"const C = 3",
		"",
	}, "\n"))

	assert.Equal(t, map[string]string{
		"i": "int",
		"f": "float",
		"s": "String",
		"b": "bool",
		"a": "Array",
		"d": "Dictionary",
		"C": "int",
	}, typesByName(table))

	for _, sym := range table.Root().Symbols {
		assert.Equal(t, uint32(0), sym.DeclOffset, sym.Name)
		assert.False(t, sym.StaticTyped, sym.Name)
	}
}

func TestBuildAnnotationsAreStatic(t *testing.T) {
	table := buildTable(t, "var speed: float = 1\nvar items: Array[int] = []\nvar nodes: Array[Node] = []\n")

	speed := symbolsNamed(table, "speed")
	require.Len(t, speed, 1)
	assert.True(t, speed[0].StaticTyped)
	assert.Equal(t, "float", speed[0].Type.String())

	types := typesByName(table)
	assert.Equal(t, "int[]", types["items"])
	assert.Equal(t, "Node[]", types["nodes"])
}

func TestBuildInferredAssignment(t *testing.T) {
	table := buildTable(t, "var n := 3\n")
	n := symbolsNamed(table, "n")
	require.Len(t, n, 1)
	assert.False(t, n[0].StaticTyped)
	assert.Equal(t, "int", n[0].Type.String())
}

func TestBuildShadowing(t *testing.T) {
	src := strings.Join([]string{
		"var x = 1",
		"func f():",
		"\tvar before = x",
		"\tvar x = \"s\"",
		"\tvar after = x",
		"",
	}, "\n")
	table := buildTable(t, src)

	types := typesByName(table)
	assert.Equal(t, "int", types["before"])
	assert.Equal(t, "String", types["after"])

	xs := symbolsNamed(table, "x")
	require.Len(t, xs, 2)
	assert.Equal(t, "int", xs[0].Type.String())
	assert.Equal(t, "String", xs[1].Type.String())
}

func TestBuildFileScopeVisibleBeforeDeclaration(t *testing.T) {
	src := "func f():\n\tvar y = later\nvar later = 2.0\n"
	table := buildTable(t, src)

	// inference runs during the walk, so the function body cannot see it yet
	assert.Equal(t, "", typesByName(table)["y"])

	offset := uint32(strings.Index(src, "later"))
	assert.Equal(t, "float", table.Resolve("later", offset).String())
}

func TestInferConstantAndOperators(t *testing.T) {
	table := buildTable(t, strings.Join([]string{
		"var zero = Vector3.ZERO",
		"var a = 1",
		"var b = 2",
		"var sum = a + b",
		"var mixed = a + 0.5",
		"var cmp = a < b",
		"var neg = -a",
		"var grouped = (a * b)",
		"var size = zero.length()",
		"",
	}, "\n"))

	types := typesByName(table)
	assert.Equal(t, "Vector3", types["zero"])
	assert.Equal(t, "int", types["sum"])
	assert.Equal(t, "float", types["mixed"])
	assert.Equal(t, "bool", types["cmp"])
	assert.Equal(t, "int", types["neg"])
	assert.Equal(t, "int", types["grouped"])
	assert.Equal(t, "float", types["size"])
}

func TestInferInheritedProperty(t *testing.T) {
	table := buildTable(t, strings.Join([]string{
		"extends CharacterBody3D",
		"",
		"func _physics_process(delta: float):",
		"\tvar v = velocity",
		"\tvar w = self.velocity",
		"\tvar moved = move_and_slide()",
		"\tvar speed = max(v.x, 0.0)",
		"",
	}, "\n"))

	assert.Equal(t, "CharacterBody3D", table.BaseClass)
	types := typesByName(table)
	assert.Equal(t, "Vector3", types["v"])
	assert.Equal(t, "Vector3", types["w"])
	assert.Equal(t, "bool", types["moved"])
	assert.Equal(t, "float", types["speed"])

	delta := symbolsNamed(table, "delta")
	require.Len(t, delta, 1)
	assert.Equal(t, SymbolParameter, delta[0].Kind)
	assert.True(t, delta[0].StaticTyped)
}

func TestInferConstructorAndNew(t *testing.T) {
	table := buildTable(t, "var v = Vector2(1, 2)\nvar n = Node.new()\nvar t = Time.get_ticks_msec()\n")
	types := typesByName(table)
	assert.Equal(t, "Vector2", types["v"])
	assert.Equal(t, "Node", types["n"])
	assert.Equal(t, "int", types["t"])
}

func TestInferLocalFunctionReturn(t *testing.T) {
	table := buildTable(t, "func speed() -> float:\n\treturn 1.0\n\nfunc g():\n\tvar s = speed()\n")
	assert.Equal(t, "float", typesByName(table)["s"])
	assert.Equal(t, "float", table.Functions["speed"].ReturnType.String())
}

func TestUnsupportedExpressionDoesNotAbortOthers(t *testing.T) {
	table := buildTable(t, "var l = func(): return 1\nvar after = 2\n")
	types := typesByName(table)
	assert.Equal(t, "", types["l"])
	assert.Equal(t, "int", types["after"])
}

func TestForLoopVariable(t *testing.T) {
	table := buildTable(t, strings.Join([]string{
		"var names: Array[String] = []",
		"func f():",
		"\tfor i in range(3):",
		"\t\tpass",
		"\tfor n in names:",
		"\t\tpass",
		"",
	}, "\n"))
	types := typesByName(table)
	assert.Equal(t, "int", types["i"])
	assert.Equal(t, "String", types["n"])

	for _, sym := range symbolsNamed(table, "i") {
		assert.Equal(t, SymbolLoopVariable, sym.Kind)
	}
}

func TestScopesForBranches(t *testing.T) {
	src := strings.Join([]string{
		"func f(x: int):",
		"\tif x > 0:",
		"\t\tvar a = 1",
		"\telif x < 0:",
		"\t\tvar b = 2",
		"\telse:",
		"\t\tvar c = 3",
		"",
	}, "\n")
	table := buildTable(t, src)

	kinds := map[ScopeKind]int{}
	for _, s := range table.Scopes() {
		kinds[s.Kind]++
	}
	assert.Equal(t, 1, kinds[ScopeFile])
	assert.Equal(t, 1, kinds[ScopeFunction])
	assert.Equal(t, 3, kinds[ScopeBranch])

	inner := table.ScopeAt(uint32(strings.Index(src, "var b")))
	assert.Equal(t, ScopeBranch, inner.Kind)

	visible := table.Visible(inner.ID, uint32(len(src)))
	var names []string
	for _, sym := range visible {
		names = append(names, sym.Name)
	}
	assert.Equal(t, []string{"b", "x"}, names)
}

func TestSymbolAtAndTypeAt(t *testing.T) {
	src := "var pos = Vector2(1, 2)\nvar n = pos.x\n"
	table := buildTable(t, src)

	sym, ok := table.SymbolAt(uint32(strings.Index(src, "pos")))
	require.True(t, ok)
	assert.Equal(t, "pos", sym.Name)

	info, ok := table.TypeAt(model.Position{Line: 0, Character: 5})
	require.True(t, ok)
	assert.Equal(t, "Vector2", info.Type.String())
	require.NotNil(t, info.Symbol)

	info, ok = table.TypeAt(model.Position{Line: 1, Character: 12})
	require.True(t, ok)
	assert.Equal(t, "float", info.Type.String())
	assert.Nil(t, info.Symbol)
}

func TestScopesForMatchArmsAndWhile(t *testing.T) {
	src := strings.Join([]string{
		"func f(b):",
		"\tmatch b:",
		"\t\t1:",
		"\t\t\tvar arm = \"s\"",
		"\t\t_:",
		"\t\t\tvar arm2 = 1.5",
		"\twhile true:",
		"\t\tvar w = 1",
		"\tvar p = (Vector3.ZERO).x",
		"",
	}, "\n")
	table := buildTable(t, src)

	fn := table.ScopeAt(uint32(strings.Index(src, "match")))
	require.Equal(t, ScopeFunction, fn.Kind)

	var arms, loops []*Scope
	for _, s := range table.Scopes() {
		switch s.Kind {
		case ScopeMatchArm:
			arms = append(arms, s)
		case ScopeLoop:
			loops = append(loops, s)
		}
	}
	require.Len(t, arms, 2)
	require.Len(t, loops, 1)
	for _, s := range append(arms, loops...) {
		assert.Equal(t, fn.ID, s.Parent)
	}

	second := table.ScopeAt(uint32(strings.Index(src, "var arm2")))
	assert.Equal(t, ScopeMatchArm, second.Kind)
	_, ok := table.Lookup(second.ID, "arm", uint32(len(src)))
	assert.False(t, ok, "sibling arm declarations are not visible")

	types := typesByName(table)
	assert.Equal(t, "String", types["arm"])
	assert.Equal(t, "float", types["arm2"])
	assert.Equal(t, "int", types["w"])
	assert.Equal(t, "float", types["p"])
}

func TestLookupSameScopeRedeclaration(t *testing.T) {
	src := strings.Join([]string{
		"func f():",
		"\tvar a = 1",
		"\tvar m = a",
		"\tvar a = \"s\"",
		"\tvar n = a",
		"",
	}, "\n")
	table := buildTable(t, src)

	// the latest declaration visible at the use site wins
	types := typesByName(table)
	assert.Equal(t, "int", types["m"])
	assert.Equal(t, "String", types["n"])

	fn := table.ScopeAt(uint32(strings.Index(src, "var n")))
	sym, ok := table.Lookup(fn.ID, "a", uint32(len(src)))
	require.True(t, ok)
	assert.Equal(t, "String", sym.Type.String())
}
