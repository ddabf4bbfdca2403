package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadr/godot-sidekick-lsp/internal/config"
	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/hints"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
)

func writeScript(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func testSession(t *testing.T) *session {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	sess, err := openSession("")
	require.NoError(t, err)
	t.Cleanup(sess.close)
	return sess
}

func TestNewCLI_HasCommandsAndAliases(t *testing.T) {
	app := newCLI()

	for _, id := range []string{"hints", "type", "scopes", "extract", "catalog"} {
		require.Contains(t, app.specs, id)
		assert.Equal(t, id, app.aliases[id])
	}
	for alias, id := range map[string]string{
		"inlay":    "hints",
		"hover":    "type",
		"scope":    "scopes",
		"refactor": "extract",
		"types":    "catalog",
	} {
		assert.Equal(t, id, app.aliases[alias], "alias %q", alias)
	}
}

func TestCLI_RunUnknownCommand(t *testing.T) {
	assert.Error(t, newCLI().Run([]string{"unknown-command"}))
}

func TestCLI_UsageErrors(t *testing.T) {
	app := newCLI()
	assert.Error(t, app.Run([]string{"hints"}))
	assert.Error(t, app.Run([]string{"type", "a.gd", "1"}))
	assert.Error(t, app.Run([]string{"catalog", "bogus"}))
}

func TestNormalizeFlagArgs_ReordersInterspersedFlags(t *testing.T) {
	args := []string{"player.gd", "--config", "sidekick.yaml", "--json", "enemy.gd"}
	got := normalizeFlagArgs(args, map[string]bool{"--config": true})
	assert.Equal(t, []string{"--config", "sidekick.yaml", "--json", "player.gd", "enemy.gd"}, got)
}

func TestParsePosition(t *testing.T) {
	pos, err := parsePosition("3", "7")
	require.NoError(t, err)
	assert.Equal(t, model.Position{Line: 2, Character: 6}, pos)

	_, err = parsePosition("0", "1")
	assert.Error(t, err)
	_, err = parsePosition("1", "x")
	assert.Error(t, err)
}

func TestLineSelection(t *testing.T) {
	r, err := lineSelection("2", "4")
	require.NoError(t, err)
	assert.Equal(t, model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 4}}, r)

	_, err = lineSelection("4", "2")
	assert.Error(t, err)
}

func TestCollectHintsKeepsFileOrder(t *testing.T) {
	sess := testSession(t)
	first := writeScript(t, "a.gd", "var a = 1\n")
	second := writeScript(t, "b.gd", "var b = \"s\"\nvar c = 2.0\n")

	results, err := collectHints(context.Background(), sess, []string{first, second}, hints.Options{VariableTypes: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, filepath.Clean(first), results[0].Path)
	require.Len(t, results[0].Hints, 1)
	assert.Equal(t, ": int", results[0].Hints[0].Label)

	require.Len(t, results[1].Hints, 2)
	assert.Equal(t, ": String", results[1].Hints[0].Label)
	assert.Equal(t, ": float", results[1].Hints[1].Label)
}

func TestCollectHintsMissingFile(t *testing.T) {
	sess := testSession(t)
	_, err := collectHints(context.Background(), sess, []string{filepath.Join(t.TempDir(), "gone.gd")}, hints.DefaultOptions())
	assert.Error(t, err)
}

func TestExtractWrite(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	path := writeScript(t, "player.gd", "func foo():\n\tvar c = 10\n\tvar a = c + d\n\tprint(a)\n")

	require.NoError(t, newCLI().Run([]string{"extract", path, "2", "3", "--write"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "func foo():\n\tvar a = fun_name(d)\n\tprint(a)")
	assert.Contains(t, text, "func fun_name(d):\n\tvar c = 10\n\tvar a = c + d\n\treturn a")
}

func TestExtractOutsideFunction(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	path := writeScript(t, "top.gd", "var a = 1\nvar b = 2\n")

	err := newCLI().Run([]string{"extract", path, "1", "2"})
	require.Error(t, err)
	var withCode exitCodeError
	require.ErrorAs(t, err, &withCode)
	assert.Equal(t, 2, withCode.ExitCode())
}

func TestCompileCatalog(t *testing.T) {
	out := filepath.Join(t.TempDir(), "type_info.msgpack")
	require.NoError(t, compileCatalog("../../pkg/catalog/assets/type_info.json", out))

	compiled, err := catalog.Load(out)
	require.NoError(t, err)
	bundled, err := catalog.Default()
	require.NoError(t, err)
	assert.Equal(t, bundled.Names(), compiled.Names())
}

func TestShouldIgnoreWatchPath(t *testing.T) {
	assert.True(t, shouldIgnoreWatchPath("/tmp/.player.gd.swp"))
	assert.True(t, shouldIgnoreWatchPath("/tmp/player.gd~"))
	assert.True(t, shouldIgnoreWatchPath("/tmp/.#player.gd"))
	assert.False(t, shouldIgnoreWatchPath("/tmp/player.gd"))
}

func TestWatchFilesReportsChangedFile(t *testing.T) {
	path := writeScript(t, "player.gd", "var a = 1\n")
	other := filepath.Join(filepath.Dir(path), "other.gd")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changed := make(chan []string, 1)
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, []string{path}, 20*time.Millisecond, func(paths []string) {
			select {
			case changed <- paths:
			default:
			}
		})
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("var b = 2\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("var a = 2.0\n"), 0o644))

	select {
	case paths := <-changed:
		assert.Equal(t, []string{filepath.Clean(path)}, paths)
	case <-ctx.Done():
		t.Fatal("no change reported")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestHintsCommandAcceptsProjectDirectory(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	path := writeScript(t, "player.gd", "var speed = 4.0\n")

	require.NoError(t, newCLI().Run([]string{"hints", filepath.Dir(path), "--json"}))
	assert.Error(t, newCLI().Run([]string{"hints", filepath.Join(filepath.Dir(path), "missing.gd")}))
}

func TestRunExitCodes(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	assert.Equal(t, 0, run([]string{"version"}))
	assert.Equal(t, 1, run([]string{"unknown-command"}))
	assert.Equal(t, 2, run([]string{"catalog", "show", "NoSuchClass"}))
}
