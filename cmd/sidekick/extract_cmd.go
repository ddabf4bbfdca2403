package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/shadr/godot-sidekick-lsp/internal/refactor"
	"github.com/shadr/godot-sidekick-lsp/pkg/model"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

type extractReport struct {
	File    string          `json:"file"`
	Action  refactor.Action `json:"action"`
	Written bool            `json:"written"`
}

func runExtract(args []string) error {
	flags := flag.NewFlagSet("extract", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	args = normalizeFlagArgs(args, map[string]bool{
		"-config":  true,
		"--config": true,
	})

	configPath := flags.String("config", "", "YAML config file")
	writeChanges := flags.Bool("write", false, "apply edits in-place (default is dry-run)")
	jsonOutput := flags.Bool("json", false, "emit JSON output")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return errors.New("usage: extract <file.gd> <start-line> <end-line>")
	}
	selection, err := lineSelection(flags.Arg(1), flags.Arg(2))
	if err != nil {
		return err
	}

	sess, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer sess.close()

	key, err := sess.load(flags.Arg(0))
	if err != nil {
		return err
	}

	var (
		action refactor.Action
		ok     bool
	)
	err = sess.read(key, func(snap store.Snapshot) error {
		var extractErr error
		action, ok, extractErr = refactor.ExtractFunction(snap, selection)
		return extractErr
	})
	if err != nil {
		return err
	}
	if !ok {
		return exitCodeError{code: 2, err: fmt.Errorf("lines %s-%s of %s are not statements of one function body", flags.Arg(1), flags.Arg(2), key)}
	}

	report := extractReport{File: key, Action: action}
	if *writeChanges {
		if err := applyEdits(sess, key, action.Edits); err != nil {
			return err
		}
		report.Written = true
		log.Info().Str("file", key).Strs("arguments", action.Arguments).Msg("function extracted")
	}

	if *jsonOutput {
		return emitJSON(report)
	}
	if report.Written {
		fmt.Printf("wrote %s\n", key)
		return nil
	}
	for _, edit := range action.Edits {
		fmt.Printf("@@ %s-%s\n", formatPosition(edit.Range.Start), formatPosition(edit.Range.End))
		fmt.Println(edit.NewText)
	}
	return nil
}

// lineSelection turns a 1-based inclusive line span into a range that starts
// and ends at column zero.
func lineSelection(start, end string) (model.Range, error) {
	first, err := strconv.Atoi(start)
	if err != nil || first < 1 {
		return model.Range{}, fmt.Errorf("invalid start line %q", start)
	}
	last, err := strconv.Atoi(end)
	if err != nil || last < first {
		return model.Range{}, fmt.Errorf("invalid end line %q", end)
	}
	return model.Range{
		Start: model.Position{Line: uint32(first - 1)},
		End:   model.Position{Line: uint32(last)},
	}, nil
}

// applyEdits applies non-overlapping edits through the store, last first so
// earlier positions stay valid, then writes the result back to path.
func applyEdits(sess *session, path string, edits []model.TextEdit) error {
	ordered := append([]model.TextEdit(nil), edits...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[j].Range.Start.Less(ordered[i].Range.Start)
	})

	changes := make([]store.Change, 0, len(ordered))
	for _, edit := range ordered {
		r := edit.Range
		changes = append(changes, store.Change{Range: &r, Text: edit.NewText})
	}
	if err := sess.store.ApplyChange(path, changes); err != nil {
		return err
	}

	text, ok := sess.store.Text(path)
	if !ok {
		return fmt.Errorf("%s: %w", path, store.ErrNotOpen)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), info.Mode().Perm())
}
