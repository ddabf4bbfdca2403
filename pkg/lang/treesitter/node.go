package treesitter

import (
	"fortio.org/safecast"
	"github.com/odvcencio/gotreesitter"

	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

// Kind returns the grammar type of n, or "" for nil.
func Kind(n *gotreesitter.Node, lang *gotreesitter.Language) string {
	if n == nil {
		return ""
	}
	return n.Type(lang)
}

// Field returns the child stored under a grammar field name.
func Field(n *gotreesitter.Node, lang *gotreesitter.Language, name string) *gotreesitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name, lang)
}

// FirstChildOfKind returns the first direct child whose type is one of kinds.
func FirstChildOfKind(n *gotreesitter.Node, lang *gotreesitter.Language, kinds ...string) *gotreesitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < n.ChildCount(); i++ {
		child := n.Child(i)
		k := Kind(child, lang)
		for _, want := range kinds {
			if k == want {
				return child
			}
		}
	}
	return nil
}

// FieldOrChild resolves a field, falling back to the first child of kind.
func FieldOrChild(n *gotreesitter.Node, lang *gotreesitter.Language, field, kind string) *gotreesitter.Node {
	if child := Field(n, lang, field); child != nil {
		return child
	}
	return FirstChildOfKind(n, lang, kind)
}

// Operands returns the children of n that are not punctuation.
func Operands(n *gotreesitter.Node, lang *gotreesitter.Language) []*gotreesitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*gotreesitter.Node, 0, n.ChildCount())
	for i := 0; i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || punctuation[Kind(child, lang)] {
			continue
		}
		out = append(out, child)
	}
	return out
}

var punctuation = map[string]bool{
	".": true, ",": true, "(": true, ")": true, "[": true, "]": true,
	"{": true, "}": true, ":": true, "comment": true,
}

// Text returns the source text of n.
func Text(n *gotreesitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Text(src)
}

// Span returns the byte range of n.
func Span(n *gotreesitter.Node) (uint32, uint32) {
	if n == nil {
		return 0, 0
	}
	return n.StartByte(), n.EndByte()
}

// Contains reports whether offset lies within n, end inclusive.
func Contains(n *gotreesitter.Node, offset uint32) bool {
	start, end := Span(n)
	return n != nil && start <= offset && offset <= end
}

// PointPosition converts a tree point into a byte-column position.
func PointPosition(p gotreesitter.Point) model.Position {
	return model.Position{Line: p.Row, Character: p.Column}
}

// PositionPoint is the inverse of PointPosition.
func PositionPoint(p model.Position) gotreesitter.Point {
	return gotreesitter.Point{Row: p.Line, Column: p.Character}
}

// ByteOffset converts a non-negative int offset to the tree's uint32 form.
func ByteOffset(offset int) (uint32, error) {
	return safecast.Conv[uint32](offset)
}

func pointLE(a, b gotreesitter.Point) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column <= b.Column
}

// PathAt returns the chain of nodes from root down to the deepest node whose
// span covers point. The slice is empty when root does not cover it.
func PathAt(root *gotreesitter.Node, point gotreesitter.Point) []*gotreesitter.Node {
	if root == nil || !pointLE(root.StartPoint(), point) || !pointLE(point, root.EndPoint()) {
		return nil
	}
	path := []*gotreesitter.Node{root}
	current := root
	for {
		var next *gotreesitter.Node
		for i := 0; i < current.ChildCount(); i++ {
			child := current.Child(i)
			if child == nil {
				continue
			}
			if pointLE(child.StartPoint(), point) && pointLE(point, child.EndPoint()) {
				next = child
				if point != child.EndPoint() {
					break
				}
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		current = next
	}
}

// DescendantAt returns the smallest node covering offset.
func DescendantAt(root *gotreesitter.Node, offset uint32) *gotreesitter.Node {
	if !Contains(root, offset) {
		return nil
	}
	current := root
	for {
		var next *gotreesitter.Node
		for i := 0; i < current.ChildCount(); i++ {
			child := current.Child(i)
			if child == nil {
				continue
			}
			start, end := Span(child)
			if start <= offset && offset < end {
				next = child
				break
			}
		}
		if next == nil {
			return current
		}
		current = next
	}
}
