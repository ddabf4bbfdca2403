package treesitter

import (
	"testing"

	"github.com/odvcencio/gotreesitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	require.NoError(t, err)
	return p
}

func TestParseGDScriptDeclarations(t *testing.T) {
	p := mustParser(t)
	src := []byte("extends Node3D\n\nvar speed = 10\n\nfunc _ready():\n\tpass\n")

	tree, err := p.Parse(src)
	require.NoError(t, err)
	defer tree.Release()

	root := tree.RootNode()
	lang := p.Language()
	assert.Equal(t, KindSource, Kind(root, lang))

	variable := FirstChildOfKind(root, lang, KindVariableStatement)
	require.NotNil(t, variable)
	assert.Equal(t, "speed", Text(Field(variable, lang, "name"), src))
	assert.Equal(t, "10", Text(Field(variable, lang, "value"), src))

	fn := FirstChildOfKind(root, lang, KindFunctionDefinition)
	require.NotNil(t, fn)
	assert.Equal(t, "_ready", Text(Field(fn, lang, "name"), src))
	assert.Equal(t, KindBody, Kind(Field(fn, lang, "body"), lang))
}

func TestParseEmptySource(t *testing.T) {
	p := mustParser(t)
	tree, err := p.Parse(nil)
	require.NoError(t, err)
	require.NotNil(t, tree)
	tree.Release()
}

func TestParseExpression(t *testing.T) {
	p := mustParser(t)
	tree, node, src, err := p.ParseExpression("Vector3(0, 0, 0)")
	require.NoError(t, err)
	defer tree.Release()

	assert.Equal(t, KindCall, Kind(node, p.Language()))
	assert.Equal(t, "Vector3(0, 0, 0)", Text(node, src))
}

func TestReparseAfterEdit(t *testing.T) {
	p := mustParser(t)
	oldSrc := []byte("var a = 1\nvar b = 2\n")
	tree, err := p.Parse(oldSrc)
	require.NoError(t, err)

	newSrc := []byte("var a = 100\nvar b = 2\n")
	edit := Edit{InputEdit: gotreesitter.InputEdit{
		StartByte:   8,
		OldEndByte:  9,
		NewEndByte:  11,
		StartPoint:  gotreesitter.Point{Row: 0, Column: 8},
		OldEndPoint: gotreesitter.Point{Row: 0, Column: 9},
		NewEndPoint: gotreesitter.Point{Row: 0, Column: 11},
	}}
	next, err := p.Reparse(newSrc, tree, []Edit{edit})
	require.NoError(t, err)
	if next != tree {
		defer next.Release()
		tree.Release()
	}

	lang := p.Language()
	first := FirstChildOfKind(next.RootNode(), lang, KindVariableStatement)
	require.NotNil(t, first)
	assert.Equal(t, "100", Text(Field(first, lang, "value"), newSrc))
}

func TestPathAtAndDescendantAt(t *testing.T) {
	p := mustParser(t)
	src := []byte("func f():\n\tvar x = 1\n")
	tree, err := p.Parse(src)
	require.NoError(t, err)
	defer tree.Release()
	lang := p.Language()

	path := PathAt(tree.RootNode(), gotreesitter.Point{Row: 1, Column: 5})
	require.NotEmpty(t, path)
	var kinds []string
	for _, n := range path {
		kinds = append(kinds, Kind(n, lang))
	}
	assert.Contains(t, kinds, KindFunctionDefinition)
	assert.Contains(t, kinds, KindBody)
	assert.Contains(t, kinds, KindVariableStatement)

	leaf := DescendantAt(tree.RootNode(), 15)
	require.NotNil(t, leaf)
	assert.Equal(t, "x", Text(leaf, src))
}
