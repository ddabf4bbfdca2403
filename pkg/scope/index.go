package scope

import (
	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

// FromSnapshot builds the scope table of a store snapshot. The table borrows
// the snapshot's tree and must not outlive the Read callback.
func FromSnapshot(snap store.Snapshot, cat *catalog.Catalog) *Table {
	return Build(snap.Tree, snap.Language, snap.Source(), cat)
}
