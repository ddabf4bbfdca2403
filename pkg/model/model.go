// Package model defines the type lattice shared by the catalog and the resolver,
// plus the editor position types used across the store, hints and refactors.
package model

import "strings"

// VariantKind enumerates the builtin value categories of the engine. The
// numeric values follow the engine's Variant.Type ordering.
type VariantKind uint8

const (
	KindNil VariantKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindVector2
	KindVector2i
	KindRect2
	KindRect2i
	KindVector3
	KindVector3i
	KindTransform2D
	KindVector4
	KindVector4i
	KindPlane
	KindQuaternion
	KindAABB
	KindBasis
	KindTransform3D
	KindProjection
	KindColor
	KindStringName
	KindNodePath
	KindRID
	KindObject
	KindCallable
	KindSignal
	KindDictionary
	KindArray
	KindPackedByteArray
	KindPackedInt32Array
	KindPackedInt64Array
	KindPackedFloat32Array
	KindPackedFloat64Array
	KindPackedStringArray
	KindPackedVector2Array
	KindPackedVector3Array
	KindPackedColorArray
	KindPackedVector4Array
)

var variantNames = [...]string{
	KindNil:                "void",
	KindBool:               "bool",
	KindInt:                "int",
	KindFloat:              "float",
	KindString:             "String",
	KindVector2:            "Vector2",
	KindVector2i:           "Vector2i",
	KindRect2:              "Rect2",
	KindRect2i:             "Rect2i",
	KindVector3:            "Vector3",
	KindVector3i:           "Vector3i",
	KindTransform2D:        "Transform2D",
	KindVector4:            "Vector4",
	KindVector4i:           "Vector4i",
	KindPlane:              "Plane",
	KindQuaternion:         "Quaternion",
	KindAABB:               "AABB",
	KindBasis:              "Basis",
	KindTransform3D:        "Transform3D",
	KindProjection:         "Projection",
	KindColor:              "Color",
	KindStringName:         "StringName",
	KindNodePath:           "NodePath",
	KindRID:                "RID",
	KindObject:             "Object",
	KindCallable:           "Callable",
	KindSignal:             "Signal",
	KindDictionary:         "Dictionary",
	KindArray:              "Array",
	KindPackedByteArray:    "PackedByteArray",
	KindPackedInt32Array:   "PackedInt32Array",
	KindPackedInt64Array:   "PackedInt64Array",
	KindPackedFloat32Array: "PackedFloat32Array",
	KindPackedFloat64Array: "PackedFloat64Array",
	KindPackedStringArray:  "PackedStringArray",
	KindPackedVector2Array: "PackedVector2Array",
	KindPackedVector3Array: "PackedVector3Array",
	KindPackedColorArray:   "PackedColorArray",
	KindPackedVector4Array: "PackedVector4Array",
}

var variantByName = func() map[string]VariantKind {
	m := make(map[string]VariantKind, len(variantNames))
	for i, name := range variantNames {
		m[name] = VariantKind(i)
	}
	return m
}()

func (k VariantKind) String() string {
	if int(k) < len(variantNames) {
		return variantNames[k]
	}
	return "void"
}

// LookupVariantKind reports whether name is a builtin variant kind.
func LookupVariantKind(name string) (VariantKind, bool) {
	k, ok := variantByName[name]
	return k, ok
}

// TypeTag discriminates the SymbolType union. The zero tag means unresolved.
type TypeTag uint8

const (
	TagUnknown TypeTag = iota
	TagVariant
	TagArray
	TagObject
	TagObjectArray
)

// ArrayMarker is the suffix that turns an element type name into an array type name.
const ArrayMarker = "[]"

// SymbolType is the static type of a declaration or expression. The zero value
// is the unresolved type; comparisons with == are structural.
type SymbolType struct {
	Tag     TypeTag     `json:"tag" msgpack:"t"`
	Variant VariantKind `json:"variant,omitempty" msgpack:"v,omitempty"`
	Class   string      `json:"class,omitempty" msgpack:"c,omitempty"`
}

// Unknown is the unresolved type.
var Unknown = SymbolType{}

func Variant(k VariantKind) SymbolType { return SymbolType{Tag: TagVariant, Variant: k} }

func Array(k VariantKind) SymbolType { return SymbolType{Tag: TagArray, Variant: k} }

func Object(class string) SymbolType { return SymbolType{Tag: TagObject, Class: class} }

func ObjectArray(class string) SymbolType { return SymbolType{Tag: TagObjectArray, Class: class} }

// GenericSentinel is the declared return type of polymorphic builtins such as max.
var GenericSentinel = Object("Variant")

// Known reports whether t is resolved.
func (t SymbolType) Known() bool { return t.Tag != TagUnknown }

// IsVariant reports whether t is the variant kind k.
func (t SymbolType) IsVariant(k VariantKind) bool {
	return t.Tag == TagVariant && t.Variant == k
}

// Element returns the element type of an array type, or Unknown.
func (t SymbolType) Element() SymbolType {
	switch t.Tag {
	case TagArray:
		return Variant(t.Variant)
	case TagObjectArray:
		return Object(t.Class)
	default:
		return Unknown
	}
}

// String renders t in catalog notation, which doubles as the catalog key.
func (t SymbolType) String() string {
	switch t.Tag {
	case TagVariant:
		return t.Variant.String()
	case TagArray:
		return t.Variant.String() + ArrayMarker
	case TagObject:
		return t.Class
	case TagObjectArray:
		return t.Class + ArrayMarker
	default:
		return ""
	}
}

// ParseSymbolType classifies a catalog type string. It never fails: names that
// are not builtin variant kinds become object types.
func ParseSymbolType(s string) SymbolType {
	if elem, ok := strings.CutSuffix(s, ArrayMarker); ok {
		if k, ok := LookupVariantKind(elem); ok {
			return Array(k)
		}
		return ObjectArray(elem)
	}
	if k, ok := LookupVariantKind(s); ok {
		return Variant(k)
	}
	return Object(s)
}

// ParseAnnotation converts a source type annotation into a SymbolType.
// Typed containers such as Array[int] are folded into array types.
func ParseAnnotation(text string) SymbolType {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown
	}
	if inner, ok := strings.CutPrefix(text, "Array["); ok {
		if elem, ok := strings.CutSuffix(inner, "]"); ok && strings.TrimSpace(elem) != "" {
			return ParseSymbolType(strings.TrimSpace(elem) + ArrayMarker)
		}
	}
	return ParseSymbolType(text)
}
