package store

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"

	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

// Encoding is the unit of Position.Character at the store's boundary.
type Encoding string

const (
	EncodingUTF8  Encoding = "utf-8"
	EncodingUTF16 Encoding = "utf-16"
)

// ParseEncoding accepts the LSP position encoding names.
func ParseEncoding(s string) (Encoding, bool) {
	switch Encoding(s) {
	case EncodingUTF8, EncodingUTF16:
		return Encoding(s), true
	default:
		return "", false
	}
}

// Buffer is a text buffer indexed by line start offsets. A Buffer is never
// mutated after it has been published to readers; writers Clone first.
type Buffer struct {
	data  []byte
	lines []int
}

func NewBuffer(text []byte) *Buffer {
	b := &Buffer{data: append([]byte(nil), text...)}
	b.reindex(0)
	return b
}

func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		data:  append([]byte(nil), b.data...),
		lines: append([]int(nil), b.lines...),
	}
}

// Bytes returns the buffer contents. The slice must not be modified.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) String() string { return string(b.data) }

func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) LineCount() int { return len(b.lines) }

// Line returns the text of line without its terminator.
func (b *Buffer) Line(line int) []byte {
	if line < 0 || line >= len(b.lines) {
		return nil
	}
	start := b.lines[line]
	end := len(b.data)
	if line+1 < len(b.lines) {
		end = b.lines[line+1] - 1
	}
	if end > start && b.data[end-1] == '\r' {
		end--
	}
	return b.data[start:end]
}

// reindex rebuilds line starts from the line containing from.
func (b *Buffer) reindex(from int) {
	keep := 1
	if len(b.lines) > 0 && from > 0 {
		keep = sort.Search(len(b.lines), func(i int) bool { return b.lines[i] > from })
		if keep < 1 {
			keep = 1
		}
	}
	if len(b.lines) == 0 {
		b.lines = []int{0}
	}
	b.lines = b.lines[:keep]
	for i := b.lines[keep-1]; i < len(b.data); i++ {
		if b.data[i] == '\n' {
			b.lines = append(b.lines, i+1)
		}
	}
}

// Offset converts pos to a byte offset. Columns past the end of a line clamp
// to the line end; a line one past the last is accepted as end of buffer.
func (b *Buffer) Offset(pos model.Position, enc Encoding) (int, error) {
	line := int(pos.Line)
	if line == len(b.lines) {
		return len(b.data), nil
	}
	if line > len(b.lines) {
		return 0, fmt.Errorf("%w: line %d of %d", ErrInvalidRange, pos.Line, len(b.lines))
	}
	text := b.Line(line)
	return b.lines[line] + columnToByte(text, pos.Character, enc), nil
}

// Position converts a byte offset into a line and byte column.
func (b *Buffer) Position(offset int) model.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.data) {
		offset = len(b.data)
	}
	line := sort.Search(len(b.lines), func(i int) bool { return b.lines[i] > offset }) - 1
	return model.Position{Line: toUint32(line), Character: toUint32(offset - b.lines[line])}
}

// Encode converts a byte-column position into enc units.
func (b *Buffer) Encode(pos model.Position, enc Encoding) model.Position {
	if enc != EncodingUTF16 {
		return pos
	}
	text := b.Line(int(pos.Line))
	limit := int(pos.Character)
	if limit > len(text) {
		limit = len(text)
	}
	var units uint32
	for i := 0; i < limit; {
		r, size := utf8.DecodeRune(text[i:])
		units += utf16Width(r)
		i += size
	}
	return model.Position{Line: pos.Line, Character: units}
}

// Decode converts a position in enc units into a byte-column position.
func (b *Buffer) Decode(pos model.Position, enc Encoding) model.Position {
	col := columnToByte(b.Line(int(pos.Line)), pos.Character, enc)
	return model.Position{Line: pos.Line, Character: toUint32(col)}
}

// toUint32 converts a line or column index, clamping values outside the
// uint32 range to its bounds.
func toUint32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err == nil {
		return v
	}
	if n < 0 {
		return 0
	}
	return math.MaxUint32
}

// Replace swaps data[start:end] for text. Callers validate the range.
func (b *Buffer) Replace(start, end int, text []byte) {
	next := make([]byte, 0, len(b.data)-(end-start)+len(text))
	next = append(next, b.data[:start]...)
	next = append(next, text...)
	next = append(next, b.data[end:]...)
	b.data = next
	b.reindex(start)
}

func columnToByte(line []byte, character uint32, enc Encoding) int {
	if enc != EncodingUTF16 {
		if int(character) > len(line) {
			return len(line)
		}
		return int(character)
	}
	var units uint32
	i := 0
	for i < len(line) && units < character {
		r, size := utf8.DecodeRune(line[i:])
		units += utf16Width(r)
		i += size
	}
	return i
}

func utf16Width(r rune) uint32 {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
