package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shadr/godot-sidekick-lsp/internal/refactor"
	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/hints"
	"github.com/shadr/godot-sidekick-lsp/pkg/scope"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

const (
	serverName    = "sidekick-lsp"
	serverVersion = "0.1.0"
	languageID    = "gdscript"
)

type Options struct {
	Catalog *catalog.Catalog
	Hints   hints.Options
	// Encoding is the preferred column unit offered during initialize.
	Encoding store.Encoding
	Logger   zerolog.Logger
}

// Service holds the open documents and answers LSP requests against them.
// Every request builds its own scope table from a store snapshot.
type Service struct {
	store     *store.Store
	catalog   *catalog.Catalog
	preferred store.Encoding
	logger    zerolog.Logger
	srv       *Server

	mu       sync.RWMutex
	hintOpts hints.Options
	shutdown bool
	exitCode int
}

func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		opts.Catalog = cat
	}
	if opts.Encoding == "" {
		opts.Encoding = store.EncodingUTF16
	}
	st, err := store.New(store.Options{Encoding: store.EncodingUTF16, Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return &Service{
		store:     st,
		catalog:   opts.Catalog,
		preferred: opts.Encoding,
		logger:    opts.Logger,
		hintOpts:  opts.Hints,
	}, nil
}

// Register wires all LSP handlers onto a Server.
func (s *Service) Register(srv *Server) {
	s.srv = srv
	srv.Handle(methodInitialize, s.handleInitialize)
	srv.Handle(methodShutdown, s.handleShutdown)
	srv.Handle("textDocument/inlayHint", s.handleInlayHint)
	srv.Handle("textDocument/hover", s.handleHover)
	srv.Handle("textDocument/codeAction", s.handleCodeAction)

	srv.OnNotify("initialized", s.handleInitialized)
	srv.OnNotify("textDocument/didOpen", s.handleDidOpen)
	srv.OnNotify("textDocument/didChange", s.handleDidChange)
	srv.OnNotify("textDocument/didClose", s.handleDidClose)
	srv.OnNotify("textDocument/didSave", func(json.RawMessage) {})
	srv.OnNotify("workspace/didChangeConfiguration", s.handleDidChangeConfiguration)
	srv.OnNotify(methodExit, s.handleExit)
}

// ExitCode is the process status the LSP lifecycle asks for: 0 after a
// shutdown request, 1 when exit arrives without one.
func (s *Service) ExitCode() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exitCode
}

// Close frees every open document.
func (s *Service) Close() {
	s.store.Release()
}

func (s *Service) handleInitialize(params json.RawMessage) (any, error) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	enc := negotiateEncoding(s.preferred, p.Capabilities.General.PositionEncodings)
	s.store.SetEncoding(enc)
	s.logger.Info().Str("root", p.RootURI).Str("encoding", string(enc)).Msg("initialize")

	return InitializeResult{
		Capabilities: ServerCapabilities{
			PositionEncoding: string(enc),
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    SyncIncremental,
				Save:      true,
			},
			HoverProvider:     true,
			InlayHintProvider: true,
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []string{refactor.KindExtract},
			},
		},
		ServerInfo: &ServerInfo{Name: serverName, Version: serverVersion},
	}, nil
}

// negotiateEncoding picks the column unit. Clients that list nothing only
// understand UTF-16.
func negotiateEncoding(preferred store.Encoding, offered []string) store.Encoding {
	if len(offered) == 0 {
		return store.EncodingUTF16
	}
	var fallback store.Encoding
	for _, name := range offered {
		enc, ok := store.ParseEncoding(strings.ToLower(name))
		if !ok {
			continue
		}
		if enc == preferred {
			return enc
		}
		if fallback == "" {
			fallback = enc
		}
	}
	if fallback == "" {
		return store.EncodingUTF16
	}
	return fallback
}

func (s *Service) handleInitialized(json.RawMessage) {
	if s.srv == nil {
		return
	}
	msg := LogMessageParams{Type: MessageInfo, Message: serverName + " initialized"}
	if err := s.srv.Notify("window/logMessage", msg); err != nil {
		s.logger.Warn().Err(err).Msg("log message notification")
	}
}

func (s *Service) handleShutdown(json.RawMessage) (any, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return nil, nil
}

func (s *Service) handleExit(json.RawMessage) {
	s.mu.Lock()
	if !s.shutdown {
		s.exitCode = 1
	}
	s.mu.Unlock()
	if s.srv != nil {
		s.srv.Stop()
	}
}

func (s *Service) handleDidOpen(params json.RawMessage) {
	var p DidOpenParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn().Err(err).Msg("didOpen params")
		return
	}
	if err := s.store.Open(uriToPath(p.TextDocument.URI), []byte(p.TextDocument.Text)); err != nil {
		s.logger.Warn().Err(err).Msg("didOpen")
	}
}

func (s *Service) handleDidChange(params json.RawMessage) {
	var p DidChangeParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn().Err(err).Msg("didChange params")
		return
	}
	changes := make([]store.Change, 0, len(p.ContentChanges))
	for _, change := range p.ContentChanges {
		changes = append(changes, store.Change{Range: change.Range, Text: change.Text})
	}
	if err := s.store.ApplyChange(uriToPath(p.TextDocument.URI), changes); err != nil {
		s.logger.Warn().Err(err).Msg("didChange")
	}
}

func (s *Service) handleDidClose(params json.RawMessage) {
	var p DocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn().Err(err).Msg("didClose params")
		return
	}
	s.store.Close(uriToPath(p.TextDocument.URI))
}

func (s *Service) handleDidChangeConfiguration(params json.RawMessage) {
	var p ConfigurationParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn().Err(err).Msg("didChangeConfiguration params")
		return
	}
	toggles := p.Settings.Sidekick.InlayHints

	s.mu.Lock()
	defer s.mu.Unlock()
	if toggles.VariableTypes != nil {
		s.hintOpts.VariableTypes = *toggles.VariableTypes
	}
	if toggles.ParameterNames != nil {
		s.hintOpts.ParameterNames = *toggles.ParameterNames
	}
	s.logger.Debug().
		Bool("variable_types", s.hintOpts.VariableTypes).
		Bool("parameter_names", s.hintOpts.ParameterNames).
		Msg("configuration changed")
}

func (s *Service) hintOptions() hints.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hintOpts
}

// read runs fn on the snapshot of uri. Documents that are not open or have
// no tree yield (nil, nil) so the client sees an empty result.
func (s *Service) read(uri string, fn func(store.Snapshot) (any, error)) (any, error) {
	var result any
	err := s.store.Read(uriToPath(uri), func(snap store.Snapshot) error {
		var err error
		result, err = fn(snap)
		return err
	})
	if errors.Is(err, store.ErrNotOpen) {
		s.logger.Debug().Str("uri", uri).Msg("request for unknown document")
		return nil, nil
	}
	return result, err
}

func (s *Service) handleInlayHint(params json.RawMessage) (any, error) {
	var p RangeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	opts := s.hintOptions()

	return s.read(p.TextDocument.URI, func(snap store.Snapshot) (any, error) {
		r := decodeRange(snap, p.Range)
		collected := hints.Collect(snap, s.catalog, r, opts)
		if len(collected) == 0 {
			return nil, nil
		}
		out := make([]InlayHint, 0, len(collected))
		for _, h := range collected {
			out = append(out, InlayHint{
				Position: snap.Buffer.Encode(h.Position, snap.Encoding),
				Label:    h.Label,
				Kind:     int(h.Kind),
			})
		}
		return out, nil
	})
}

func (s *Service) handleHover(params json.RawMessage) (any, error) {
	var p PositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	return s.read(p.TextDocument.URI, func(snap store.Snapshot) (any, error) {
		table := scope.FromSnapshot(snap, s.catalog)
		info, ok := table.TypeAt(snap.Buffer.Decode(p.Position, snap.Encoding))
		if !ok {
			return nil, nil
		}
		r := encodeRange(snap, info.Range)
		return Hover{
			Contents: MarkupContent{
				Kind:  "markdown",
				Value: "```" + languageID + "\n" + info.Text + ": " + info.Type.String() + "\n```",
			},
			Range: &r,
		}, nil
	})
}

func (s *Service) handleCodeAction(params json.RawMessage) (any, error) {
	var p CodeActionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if !wantsKind(p.Context.Only, refactor.KindExtract) {
		return []CodeAction{}, nil
	}

	result, err := s.read(p.TextDocument.URI, func(snap store.Snapshot) (any, error) {
		action, ok, err := refactor.ExtractFunction(snap, decodeRange(snap, p.Range))
		if err != nil || !ok {
			return nil, err
		}
		edits := make([]TextEdit, 0, len(action.Edits))
		for _, edit := range action.Edits {
			edits = append(edits, TextEdit{Range: encodeRange(snap, edit.Range), NewText: edit.NewText})
		}
		return []CodeAction{{
			Title: action.Title,
			Kind:  action.Kind,
			Edit:  &WorkspaceEdit{Changes: map[string][]TextEdit{p.TextDocument.URI: edits}},
		}}, nil
	})
	if err != nil || result == nil {
		return []CodeAction{}, err
	}
	return result, nil
}

// wantsKind reports whether a codeAction "only" filter admits kind. Filters
// match hierarchically, so "refactor" admits "refactor.extract".
func wantsKind(only []string, kind string) bool {
	if len(only) == 0 {
		return true
	}
	for _, prefix := range only {
		if kind == prefix || strings.HasPrefix(kind, prefix+".") {
			return true
		}
	}
	return false
}

func decodeRange(snap store.Snapshot, r Range) Range {
	return Range{
		Start: snap.Buffer.Decode(r.Start, snap.Encoding),
		End:   snap.Buffer.Decode(r.End, snap.Encoding),
	}
}

func encodeRange(snap store.Snapshot, r Range) Range {
	return Range{
		Start: snap.Buffer.Encode(r.Start, snap.Encoding),
		End:   snap.Buffer.Encode(r.End, snap.Encoding),
	}
}

// --- Helpers ---

func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return u.Path
	}
	return strings.TrimPrefix(uri, "file://")
}
