package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadr/godot-sidekick-lsp/pkg/hints"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

const testURI = "file:///project/player.gd"

// lspRequest builds a Content-Length framed LSP request.
func lspRequest(id int, method string, params any) string {
	p, _ := json.Marshal(params)
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"%s","params":%s}`, id, method, p)
	return frame(body)
}

// lspNotify builds a Content-Length framed LSP notification.
func lspNotify(method string, params any) string {
	p, _ := json.Marshal(params)
	body := fmt.Sprintf(`{"jsonrpc":"2.0","method":"%s","params":%s}`, method, p)
	return frame(body)
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// responses splits the server output into messages keyed by request id.
// Notifications are keyed by method.
func responses(t *testing.T, out *bytes.Buffer) map[string]response {
	t.Helper()
	got := map[string]response{}
	r := bufio.NewReader(out)
	for {
		header, err := r.ReadString('\n')
		if err == io.EOF {
			return got
		}
		require.NoError(t, err)
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:")))
		require.NoError(t, err)
		_, err = r.ReadString('\n')
		require.NoError(t, err)

		body := make([]byte, n)
		_, err = io.ReadFull(r, body)
		require.NoError(t, err)

		var resp response
		require.NoError(t, json.Unmarshal(body, &resp))
		key := string(resp.ID)
		if key == "" {
			key = resp.Method
		}
		got[key] = resp
	}
}

func runSession(t *testing.T, opts Options, input string) (*Service, map[string]response) {
	t.Helper()
	if opts.Hints == (hints.Options{}) {
		opts.Hints = hints.DefaultOptions()
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	var out bytes.Buffer
	srv := NewServer(strings.NewReader(input), &out, zerolog.Nop())
	svc.Register(srv)
	require.NoError(t, srv.Serve())
	return svc, responses(t, &out)
}

func didOpen(text string) string {
	return lspNotify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{"uri": testURI, "languageId": "gdscript", "version": 1, "text": text},
	})
}

func inlayHintRequest(id int) string {
	return lspRequest(id, "textDocument/inlayHint", map[string]any{
		"textDocument": map[string]string{"uri": testURI},
		"range":        map[string]any{"start": map[string]int{"line": 0, "character": 0}, "end": map[string]int{"line": 100, "character": 0}},
	})
}

func decodeHints(t *testing.T, resp response) []InlayHint {
	t.Helper()
	require.Nil(t, resp.Error)
	var out []InlayHint
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	return out
}

func TestServiceInitialize(t *testing.T) {
	input := lspRequest(1, "initialize", map[string]any{"rootUri": "file:///project"}) +
		lspNotify("initialized", struct{}{}) +
		lspRequest(2, "shutdown", nil) +
		lspNotify("exit", nil)

	svc, got := runSession(t, Options{}, input)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(got["1"].Result, &result))
	assert.Equal(t, "utf-16", result.Capabilities.PositionEncoding)
	assert.Equal(t, SyncIncremental, result.Capabilities.TextDocumentSync.Change)
	assert.True(t, result.Capabilities.InlayHintProvider)
	assert.True(t, result.Capabilities.HoverProvider)
	require.NotNil(t, result.Capabilities.CodeActionProvider)
	assert.Equal(t, []string{"refactor.extract"}, result.Capabilities.CodeActionProvider.CodeActionKinds)
	assert.Equal(t, serverName, result.ServerInfo.Name)

	assert.Contains(t, got, "window/logMessage")
	assert.Equal(t, 0, svc.ExitCode())
}

func TestServiceNegotiatesPreferredEncoding(t *testing.T) {
	input := lspRequest(1, "initialize", map[string]any{
		"capabilities": map[string]any{"general": map[string]any{"positionEncodings": []string{"utf-16", "utf-8"}}},
	})
	_, got := runSession(t, Options{Encoding: store.EncodingUTF8}, input)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(got["1"].Result, &result))
	assert.Equal(t, "utf-8", result.Capabilities.PositionEncoding)

	assert.Equal(t, store.EncodingUTF16, negotiateEncoding(store.EncodingUTF8, []string{"utf-32", "utf-16"}))
	assert.Equal(t, store.EncodingUTF16, negotiateEncoding(store.EncodingUTF8, nil))
}

func TestServiceInlayHintsFollowChanges(t *testing.T) {
	input := lspRequest(1, "initialize", map[string]any{}) +
		didOpen("var a = 1\n") +
		inlayHintRequest(2) +
		lspNotify("textDocument/didChange", map[string]any{
			"textDocument": map[string]any{"uri": testURI, "version": 2},
			"contentChanges": []map[string]any{{
				"range": map[string]any{"start": map[string]int{"line": 0, "character": 8}, "end": map[string]int{"line": 0, "character": 9}},
				"text":  `"s"`,
			}},
		}) +
		inlayHintRequest(3) +
		lspNotify("textDocument/didChange", map[string]any{
			"textDocument":   map[string]any{"uri": testURI, "version": 3},
			"contentChanges": []map[string]any{{"text": "var f = 1.5\n"}},
		}) +
		inlayHintRequest(4)

	_, got := runSession(t, Options{}, input)

	first := decodeHints(t, got["2"])
	require.Len(t, first, 1)
	assert.Equal(t, InlayHint{Position: Position{Line: 0, Character: 5}, Label: ": int", Kind: 1}, first[0])

	second := decodeHints(t, got["3"])
	require.Len(t, second, 1)
	assert.Equal(t, ": String", second[0].Label)

	third := decodeHints(t, got["4"])
	require.Len(t, third, 1)
	assert.Equal(t, ": float", third[0].Label)
}

func TestServiceConfigurationDisablesHints(t *testing.T) {
	input := lspRequest(1, "initialize", map[string]any{}) +
		didOpen("var a = 1\n") +
		lspNotify("workspace/didChangeConfiguration", map[string]any{
			"settings": map[string]any{"sidekick": map[string]any{"inlayHints": map[string]bool{"variableTypes": false}}},
		}) +
		inlayHintRequest(2)

	_, got := runSession(t, Options{}, input)
	assert.Equal(t, "null", string(got["2"].Result))
}

func TestServiceHover(t *testing.T) {
	input := lspRequest(1, "initialize", map[string]any{}) +
		didOpen("var pos = Vector2(1, 2)\n") +
		lspRequest(2, "textDocument/hover", map[string]any{
			"textDocument": map[string]string{"uri": testURI},
			"position":     map[string]int{"line": 0, "character": 5},
		})

	_, got := runSession(t, Options{}, input)

	var hover Hover
	require.NoError(t, json.Unmarshal(got["2"].Result, &hover))
	assert.Equal(t, "markdown", hover.Contents.Kind)
	assert.Contains(t, hover.Contents.Value, "pos: Vector2")
}

func TestServiceCodeActionExtract(t *testing.T) {
	src := "func foo():\n\tvar c = 10\n\tvar a = c + d\n\tprint(a)\n"
	input := lspRequest(1, "initialize", map[string]any{}) +
		didOpen(src) +
		lspRequest(2, "textDocument/codeAction", map[string]any{
			"textDocument": map[string]string{"uri": testURI},
			"range":        map[string]any{"start": map[string]int{"line": 1, "character": 1}, "end": map[string]int{"line": 2, "character": 4}},
			"context":      map[string]any{"only": []string{"refactor"}},
		}) +
		lspRequest(3, "textDocument/codeAction", map[string]any{
			"textDocument": map[string]string{"uri": testURI},
			"range":        map[string]any{"start": map[string]int{"line": 1, "character": 1}, "end": map[string]int{"line": 1, "character": 1}},
			"context":      map[string]any{},
		})

	_, got := runSession(t, Options{}, input)

	var actions []CodeAction
	require.NoError(t, json.Unmarshal(got["2"].Result, &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, "refactor.extract", actions[0].Kind)
	require.NotNil(t, actions[0].Edit)
	edits := actions[0].Edit.Changes[testURI]
	require.Len(t, edits, 2)
	assert.Equal(t, "var a = fun_name(d)", edits[0].NewText)
	assert.Contains(t, edits[1].NewText, "func fun_name(d):")

	assert.Equal(t, "[]", string(got["3"].Result))
}

func TestServiceUnknownDocumentAndExitWithoutShutdown(t *testing.T) {
	input := lspRequest(1, "initialize", map[string]any{}) +
		inlayHintRequest(2) +
		lspNotify("exit", nil)
	svc, got := runSession(t, Options{}, input)

	assert.Nil(t, got["2"].Error)
	assert.Equal(t, "null", string(got["2"].Result))
	assert.Equal(t, 1, svc.ExitCode())
}

func TestWantsKind(t *testing.T) {
	assert.True(t, wantsKind(nil, "refactor.extract"))
	assert.True(t, wantsKind([]string{"refactor"}, "refactor.extract"))
	assert.False(t, wantsKind([]string{"quickfix"}, "refactor.extract"))
	assert.False(t, wantsKind([]string{"refactor.ex"}, "refactor.extract"))
}

func TestURIToPath(t *testing.T) {
	assert.Equal(t, "/project/my file.gd", uriToPath("file:///project/my%20file.gd"))
	assert.Equal(t, "scratch.gd", uriToPath("scratch.gd"))
}
