// Package refactor implements source-to-source code actions over a store
// snapshot.
package refactor

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/gotreesitter"

	ts "github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

//go:embed queries/used.scm
var usedQuery string

const (
	ExtractTitle = "Extract into function"
	KindExtract  = "refactor.extract"

	extractedName = "fun_name"
)

// Action is a code action expressed as edits to the document it was
// computed for. Positions use byte columns.
type Action struct {
	Title string           `json:"title"`
	Kind  string           `json:"kind"`
	Edits []model.TextEdit `json:"edits"`
	// Arguments are the parameters of the extracted function.
	Arguments []string `json:"arguments"`
}

// selection is a run of sibling statements inside one body.
type selection struct {
	body       *gotreesitter.Node
	first      int
	last       int
	function   *gotreesitter.Node
	startPoint gotreesitter.Point
}

func (s selection) statements() []*gotreesitter.Node {
	out := make([]*gotreesitter.Node, 0, s.last-s.first+1)
	for i := s.first; i <= s.last; i++ {
		out = append(out, s.body.Child(i))
	}
	return out
}

// ExtractFunction moves the statements covered by r into a new function
// appended after the enclosing one and replaces them with a call. ok is
// false for empty selections and selections outside a function body.
func ExtractFunction(snap store.Snapshot, r model.Range) (Action, bool, error) {
	if r.Empty() || snap.Tree == nil {
		return Action{}, false, nil
	}
	if r.Start.Character == 0 && r.End.Character == 0 && r.End.Line > 0 {
		r.End.Line--
	}

	root := snap.Tree.RootNode()
	start, ok := statementAt(snap, root, r.Start)
	if !ok {
		return Action{}, false, nil
	}
	end, ok := statementAt(snap, root, r.End)
	if !ok || !sameNode(start.body, end.body) || end.first < start.first || start.function == nil {
		return Action{}, false, nil
	}
	sel := selection{
		body:       start.body,
		first:      start.first,
		last:       end.first,
		function:   start.function,
		startPoint: start.startPoint,
	}

	args, err := freeNames(snap, root, sel)
	if err != nil {
		return Action{}, false, err
	}
	return buildAction(snap, sel, args), true, nil
}

// statementAt finds the statement on the line of pos. The column is moved
// past leading tabs, so any position on the line selects the same statement.
func statementAt(snap store.Snapshot, root *gotreesitter.Node, pos model.Position) (selection, bool) {
	line := snap.Buffer.Line(int(pos.Line))
	indent := len(line) - len(strings.TrimLeft(string(line), "\t"))
	if indent < len(line) {
		pos.Character = uint32(indent)
	}

	path := ts.PathAt(root, ts.PositionPoint(pos))
	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		if ts.Kind(parent, snap.Language) != ts.KindBody {
			continue
		}
		sel := selection{body: parent, first: -1, startPoint: path[i].StartPoint()}
		for j := 0; j < parent.ChildCount(); j++ {
			if sameNode(parent.Child(j), path[i]) {
				sel.first = j
				break
			}
		}
		if sel.first < 0 {
			return selection{}, false
		}
		for k := i - 1; k >= 0; k-- {
			if ts.Kind(path[k], snap.Language) == ts.KindFunctionDefinition {
				sel.function = path[k]
				break
			}
		}
		return sel, true
	}
	return selection{}, false
}

func sameNode(a, b *gotreesitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// freeNames returns the identifiers used by the selection that are neither
// declared inside it nor at the top level of the file, sorted.
func freeNames(snap store.Snapshot, root *gotreesitter.Node, sel selection) ([]string, error) {
	q, err := gotreesitter.NewQuery(usedQuery, snap.Language)
	if err != nil {
		return nil, fmt.Errorf("compile used-names query: %w", err)
	}
	src := snap.Source()

	excluded := map[string]bool{}
	for _, name := range declaredNames(root, 0, root.ChildCount()-1, snap.Language, src) {
		excluded[name] = true
	}
	for _, name := range declaredNames(sel.body, sel.first, sel.last, snap.Language, src) {
		excluded[name] = true
	}

	used := map[string]bool{}
	for _, stmt := range sel.statements() {
		cursor := q.Exec(stmt, snap.Language, src)
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, capture := range match.Captures {
				name := ts.Text(capture.Node, src)
				if name != "" && !excluded[name] {
					used[name] = true
				}
			}
		}
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func declaredNames(parent *gotreesitter.Node, first, last int, lang *gotreesitter.Language, src []byte) []string {
	var out []string
	for i := first; i <= last && i < parent.ChildCount(); i++ {
		child := parent.Child(i)
		if !ts.DeclarationNodeTypes[ts.Kind(child, lang)] {
			continue
		}
		if name := ts.Field(child, lang, "name"); name != nil {
			out = append(out, ts.Text(name, src))
		}
	}
	return out
}

func buildAction(snap store.Snapshot, sel selection, args []string) Action {
	src := snap.Source()
	firstStmt := sel.body.Child(sel.first)
	lastStmt := sel.body.Child(sel.last)

	startByte, _ := ts.Span(firstStmt)
	_, endByte := ts.Span(lastStmt)
	for startByte > 0 && src[startByte-1] != '\n' {
		startByte--
	}
	content := string(src[startByte:endByte])

	call := extractedName + "(" + strings.Join(args, ", ") + ")"
	returned := ""
	if ts.Kind(lastStmt, snap.Language) == ts.KindVariableStatement {
		returned = ts.Text(ts.Field(lastStmt, snap.Language, "name"), src)
	}
	replacement := call
	if returned != "" {
		replacement = "var " + returned + " = " + call
	}

	var body strings.Builder
	body.WriteString("\n\n\nfunc " + call + ":\n")
	body.WriteString(content)
	if returned != "" {
		body.WriteString("\n\treturn " + returned)
	}
	indent := len(content) - len(strings.TrimLeft(content, "\t"))
	inserted := strings.ReplaceAll(body.String(), "\n"+strings.Repeat("\t", indent), "\n\t")

	insertAt := ts.PointPosition(sel.function.EndPoint())
	return Action{
		Title:     ExtractTitle,
		Kind:      KindExtract,
		Arguments: args,
		Edits: []model.TextEdit{
			{
				Range: model.Range{
					Start: ts.PointPosition(sel.startPoint),
					End:   ts.PointPosition(lastStmt.EndPoint()),
				},
				NewText: replacement,
			},
			{
				Range:   model.Range{Start: insertAt, End: insertAt},
				NewText: inserted,
			},
		},
	}
}
