package model

// Position is a zero-based line/column pair. The column unit depends on the
// caller: byte columns inside the store and the resolver, negotiated units
// at the protocol edge.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Less reports whether p is before q.
func (p Position) Less(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range selects nothing.
func (r Range) Empty() bool { return r.Start == r.End }

// RangeContains is the hint filter: a position is accepted when it lies on a
// line strictly inside the range, or on the first line at or after the start
// column, or on the last line at or before the end column.
func RangeContains(r Range, p Position) bool {
	return (r.Start.Line < p.Line && r.End.Line > p.Line) ||
		(r.Start.Line == p.Line && r.Start.Character <= p.Character) ||
		(r.End.Line == p.Line && r.End.Character >= p.Character)
}

// TextEdit replaces Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}
