package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shadr/godot-sidekick-lsp/pkg/model"
	"github.com/shadr/godot-sidekick-lsp/pkg/scope"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

type scopeReport struct {
	File      string       `json:"file"`
	BaseClass string       `json:"base_class,omitempty"`
	Scopes    []scopeEntry `json:"scopes"`
}

type scopeEntry struct {
	Kind    string        `json:"kind"`
	Depth   int           `json:"depth"`
	Range   model.Range   `json:"range"`
	Symbols []symbolEntry `json:"symbols"`
}

type symbolEntry struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Type     string         `json:"type"`
	Static   bool           `json:"static"`
	Position model.Position `json:"position"`
}

func runScopes(args []string) error {
	flags := flag.NewFlagSet("scopes", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	args = normalizeFlagArgs(args, map[string]bool{
		"-config":  true,
		"--config": true,
	})

	configPath := flags.String("config", "", "YAML config file")
	jsonOutput := flags.Bool("json", false, "emit JSON output")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: scopes <file.gd>")
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

	var report scopeReport
	err = sess.read(key, func(snap store.Snapshot) error {
		report = buildScopeReport(key, snap, scope.FromSnapshot(snap, sess.catalog))
		return nil
	})
	if err != nil {
		return err
	}

	if *jsonOutput {
		return emitJSON(report)
	}

	fmt.Printf("file: %s\n", report.File)
	if report.BaseClass != "" {
		fmt.Printf("extends: %s\n", report.BaseClass)
	}
	for _, entry := range report.Scopes {
		indent := strings.Repeat("  ", entry.Depth)
		fmt.Printf("%s%s [%s-%s]\n", indent, entry.Kind, formatPosition(entry.Range.Start), formatPosition(entry.Range.End))
		for _, symbol := range entry.Symbols {
			marker := ""
			if symbol.Static {
				marker = " (annotated)"
			}
			fmt.Printf("%s  %s %s: %s%s\n", indent, symbol.Kind, symbol.Name, typeColor.Sprint(symbol.Type), marker)
		}
	}
	return nil
}

func buildScopeReport(path string, snap store.Snapshot, table *scope.Table) scopeReport {
	report := scopeReport{File: path, BaseClass: table.BaseClass}
	depths := map[scope.ID]int{}
	for _, s := range table.Scopes() {
		depth := 0
		if !s.IsRoot() {
			depth = depths[s.Parent] + 1
		}
		depths[s.ID] = depth

		entry := scopeEntry{
			Kind:  s.Kind.String(),
			Depth: depth,
			Range: model.Range{
				Start: snap.Buffer.Position(int(s.ID.Start)),
				End:   snap.Buffer.Position(int(s.ID.End)),
			},
			Symbols: make([]symbolEntry, 0, len(s.Symbols)),
		}
		for _, symbol := range s.Symbols {
			entry.Symbols = append(entry.Symbols, symbolEntry{
				Name:     symbol.Name,
				Kind:     string(symbol.Kind),
				Type:     symbol.Type.String(),
				Static:   symbol.StaticTyped,
				Position: snap.Buffer.Position(int(symbol.NameStart)),
			})
		}
		report.Scopes = append(report.Scopes, entry)
	}
	return report
}
