package catalog

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const compiledVersion = 1

type compiledCatalog struct {
	Version int                   `msgpack:"version"`
	Classes map[string]*ClassInfo `msgpack:"classes"`
}

// WriteMsgpack writes the compiled form of c. It skips JSON decoding and
// type-string classification when loaded back.
func (c *Catalog) WriteMsgpack(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(compiledCatalog{Version: compiledVersion, Classes: c.classes})
}

// ReadMsgpack decodes a catalog written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*Catalog, error) {
	var compiled compiledCatalog
	if err := msgpack.NewDecoder(r).Decode(&compiled); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if compiled.Version != compiledVersion {
		return nil, fmt.Errorf("%w: compiled catalog version %d, want %d", ErrMalformed, compiled.Version, compiledVersion)
	}
	for name, info := range compiled.Classes {
		if info == nil {
			return nil, fmt.Errorf("%w: class %q has no entry", ErrMalformed, name)
		}
	}
	return newCatalog(compiled.Classes), nil
}
