package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSymbolType(t *testing.T) {
	tests := []struct {
		in   string
		want SymbolType
	}{
		{"int", Variant(KindInt)},
		{"float", Variant(KindFloat)},
		{"String", Variant(KindString)},
		{"void", Variant(KindNil)},
		{"Vector3", Variant(KindVector3)},
		{"Transform3D", Variant(KindTransform3D)},
		{"Object", Variant(KindObject)},
		{"float[]", Array(KindFloat)},
		{"Node", Object("Node")},
		{"Variant", GenericSentinel},
		{"Node3D[]", ObjectArray("Node3D")},
		{"", Object("")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSymbolType(tt.in))
		})
	}
}

func TestSymbolTypeStringIsCatalogKey(t *testing.T) {
	for _, s := range []string{"int", "Vector3", "float[]", "CharacterBody3D", "Node[]", "PackedVector3Array"} {
		assert.Equal(t, s, ParseSymbolType(s).String())
	}
	assert.Equal(t, "", Unknown.String())
	assert.False(t, Unknown.Known())
}

func TestParseAnnotation(t *testing.T) {
	assert.Equal(t, Array(KindInt), ParseAnnotation("Array[int]"))
	assert.Equal(t, ObjectArray("Node"), ParseAnnotation(" Array[Node] "))
	assert.Equal(t, Variant(KindArray), ParseAnnotation("Array"))
	assert.Equal(t, Unknown, ParseAnnotation("  "))
}

func TestElement(t *testing.T) {
	assert.Equal(t, Variant(KindInt), Array(KindInt).Element())
	assert.Equal(t, Object("Node"), ObjectArray("Node").Element())
	assert.Equal(t, Unknown, Variant(KindInt).Element())
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: Position{Line: 2, Character: 4}, End: Position{Line: 5, Character: 3}}

	assert.True(t, RangeContains(r, Position{Line: 3, Character: 100}))
	assert.True(t, RangeContains(r, Position{Line: 2, Character: 4}))
	assert.True(t, RangeContains(r, Position{Line: 5, Character: 0}))
	assert.False(t, RangeContains(r, Position{Line: 1, Character: 0}))
	assert.False(t, RangeContains(r, Position{Line: 6, Character: 0}))
	// the start-line clause has no upper bound on the column
	assert.True(t, RangeContains(r, Position{Line: 2, Character: 90}))
}
