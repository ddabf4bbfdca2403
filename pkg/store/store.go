// Package store keeps the text and syntax tree of every open document and
// patches both together on each change batch.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/odvcencio/gotreesitter"
	"github.com/rs/zerolog"

	"github.com/shadr/godot-sidekick-lsp/pkg/lang/treesitter"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

var (
	ErrNotOpen      = errors.New("document not open")
	ErrInvalidRange = errors.New("edit range outside document")
)

// Change is one edit of a batch. A nil Range replaces the whole document.
type Change struct {
	Range *model.Range
	Text  string
}

type sourceFile struct {
	buf  *Buffer
	tree *gotreesitter.Tree
}

// Snapshot is a consistent view of one document. It is only valid inside the
// callback passed to Store.Read.
type Snapshot struct {
	Path     string
	Buffer   *Buffer
	Tree     *gotreesitter.Tree
	Language *gotreesitter.Language
	Encoding Encoding
}

// Source returns the document text.
func (s Snapshot) Source() []byte { return s.Buffer.Bytes() }

type Options struct {
	Encoding Encoding
	Logger   zerolog.Logger
}

type Store struct {
	mu       sync.RWMutex
	files    map[string]*sourceFile
	parser   *treesitter.Parser
	encoding Encoding
	logger   zerolog.Logger
}

func New(opts Options) (*Store, error) {
	parser, err := treesitter.NewParser()
	if err != nil {
		return nil, err
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingUTF8
	}
	return &Store{
		files:    make(map[string]*sourceFile),
		parser:   parser,
		encoding: opts.Encoding,
		logger:   opts.Logger,
	}, nil
}

// SetEncoding changes the column unit of incoming and outgoing positions.
func (s *Store) SetEncoding(enc Encoding) {
	s.mu.Lock()
	s.encoding = enc
	s.mu.Unlock()
}

func (s *Store) Encoding() Encoding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoding
}

func (s *Store) Language() *gotreesitter.Language {
	return s.parser.Language()
}

// Open stores text under path, replacing any previous entry. A parse failure
// keeps the text without a tree and is returned for logging.
func (s *Store) Open(path string, text []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := NewBuffer(text)
	tree, err := s.parser.Parse(buf.Bytes())
	s.put(path, &sourceFile{buf: buf, tree: tree})
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	s.logger.Debug().Str("path", path).Int("bytes", buf.Len()).Msg("document opened")
	return nil
}

// ApplyChange applies changes in order and reparses once. Unknown paths are
// ignored. A change with an invalid range rejects the whole batch.
func (s *Store) ApplyChange(path string, changes []Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[path]
	if !ok {
		s.logger.Debug().Str("path", path).Msg("change for unopened document dropped")
		return nil
	}
	if len(changes) == 0 {
		return nil
	}

	buf := file.buf.Clone()
	edits := make([]treesitter.Edit, 0, len(changes))
	for i, change := range changes {
		edit, err := s.applyOne(buf, change)
		if err != nil {
			return fmt.Errorf("change %d of %s: %w", i, path, err)
		}
		edits = append(edits, edit)
	}

	tree, err := s.parser.Reparse(buf.Bytes(), file.tree, edits)
	if err != nil {
		// The old tree has already been edited; keep the new text without a
		// tree so the next batch starts from a full parse.
		s.logger.Warn().Err(err).Str("path", path).Msg("reparse failed")
		if file.tree != nil {
			file.tree.Release()
		}
		s.files[path] = &sourceFile{buf: buf}
		return fmt.Errorf("reparse %s: %w", path, err)
	}
	if file.tree != nil && file.tree != tree {
		file.tree.Release()
	}
	s.files[path] = &sourceFile{buf: buf, tree: tree}
	s.logger.Debug().Str("path", path).Int("changes", len(changes)).Msg("document changed")
	return nil
}

func (s *Store) applyOne(buf *Buffer, change Change) (treesitter.Edit, error) {
	start, end := 0, buf.Len()
	if change.Range != nil {
		var err error
		if start, err = buf.Offset(change.Range.Start, s.encoding); err != nil {
			return treesitter.Edit{}, err
		}
		if end, err = buf.Offset(change.Range.End, s.encoding); err != nil {
			return treesitter.Edit{}, err
		}
		if end < start {
			return treesitter.Edit{}, fmt.Errorf("%w: end before start", ErrInvalidRange)
		}
	}

	oldLen := buf.Len()
	startPoint := buf.Position(start)
	oldEndPoint := buf.Position(end)
	buf.Replace(start, end, []byte(change.Text))
	newEnd := start + len(change.Text)

	startByte, err := treesitter.ByteOffset(start)
	if err != nil {
		return treesitter.Edit{}, err
	}
	oldEndByte, err := treesitter.ByteOffset(end)
	if err != nil {
		return treesitter.Edit{}, err
	}
	newEndByte, err := treesitter.ByteOffset(newEnd)
	if err != nil {
		return treesitter.Edit{}, err
	}

	return treesitter.Edit{
		InputEdit: gotreesitter.InputEdit{
			StartByte:   startByte,
			OldEndByte:  oldEndByte,
			NewEndByte:  newEndByte,
			StartPoint:  treesitter.PositionPoint(startPoint),
			OldEndPoint: treesitter.PositionPoint(oldEndPoint),
			NewEndPoint: treesitter.PositionPoint(buf.Position(newEnd)),
		},
		AtEOF: end == oldLen,
	}, nil
}

// Close forgets path.
func (s *Store) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop(path)
	s.logger.Debug().Str("path", path).Msg("document closed")
}

// Read runs fn with a snapshot of path under the shared lock. Documents
// without a usable tree report ErrNotOpen as well.
func (s *Store) Read(path string, fn func(Snapshot) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[path]
	if !ok || file.tree == nil || file.tree.RootNode() == nil {
		return fmt.Errorf("%s: %w", path, ErrNotOpen)
	}
	return fn(Snapshot{
		Path:     path,
		Buffer:   file.buf,
		Tree:     file.tree,
		Language: s.parser.Language(),
		Encoding: s.encoding,
	})
}

// Text returns a copy of the current text of path.
func (s *Store) Text(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[path]
	if !ok {
		return "", false
	}
	return file.buf.String(), true
}

// Paths returns the open document paths, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Release frees every tree and empties the store.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.files {
		s.drop(path)
	}
}

func (s *Store) put(path string, next *sourceFile) {
	if current, ok := s.files[path]; ok {
		if current.tree != nil && current.tree != next.tree {
			current.tree.Release()
		}
	}
	s.files[path] = next
}

func (s *Store) drop(path string) {
	current, ok := s.files[path]
	if !ok {
		return
	}
	if current.tree != nil {
		current.tree.Release()
	}
	delete(s.files, path)
}
