package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shadr/godot-sidekick-lsp/internal/config"
	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

// session is the state shared by the file commands: configuration, the type
// catalog and a store holding every file named on the command line.
type session struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   *store.Store
}

func openSession(configPath string) (*session, error) {
	cfg, err := config.Load(config.Resolve(configPath))
	if err != nil {
		return nil, err
	}
	level, _ := cfg.Level()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	cat, err := cfg.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Debug().Int("classes", cat.Len()).Msg("catalog loaded")

	st, err := store.New(store.Options{Encoding: store.EncodingUTF8, Logger: log.Logger})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, catalog: cat, store: st}, nil
}

func (s *session) close() {
	s.store.Release()
}

// load reads path from disk into the store and returns its key.
func (s *session) load(path string) (string, error) {
	key := filepath.Clean(path)
	data, err := os.ReadFile(key)
	if err != nil {
		return "", err
	}
	if err := s.store.Open(key, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *session) read(path string, fn func(store.Snapshot) error) error {
	return s.store.Read(path, fn)
}

func wholeFile(snap store.Snapshot) model.Range {
	return model.Range{End: model.Position{Line: uint32(snap.Buffer.LineCount())}}
}

// parsePosition reads a 1-based line and column pair.
func parsePosition(line, column string) (model.Position, error) {
	l, err := strconv.Atoi(line)
	if err != nil || l < 1 {
		return model.Position{}, fmt.Errorf("invalid line %q", line)
	}
	c, err := strconv.Atoi(column)
	if err != nil || c < 1 {
		return model.Position{}, fmt.Errorf("invalid column %q", column)
	}
	return model.Position{Line: uint32(l - 1), Character: uint32(c - 1)}, nil
}

func formatPosition(p model.Position) string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

func emitJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeFlagArgs(args []string, valueFlags map[string]bool) []string {
	if len(args) == 0 {
		return nil
	}

	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}

		if !strings.HasPrefix(arg, "-") {
			positionals = append(positionals, arg)
			continue
		}

		flags = append(flags, arg)
		if strings.Contains(arg, "=") || !valueFlags[arg] {
			continue
		}
		if i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}

	return append(flags, positionals...)
}
