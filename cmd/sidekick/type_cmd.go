package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/shadr/godot-sidekick-lsp/pkg/model"
	"github.com/shadr/godot-sidekick-lsp/pkg/scope"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

type typeReport struct {
	File   string      `json:"file"`
	Text   string      `json:"text"`
	Type   string      `json:"type"`
	Range  model.Range `json:"range"`
	Symbol string      `json:"symbol,omitempty"`
	Static bool        `json:"static,omitempty"`
}

func runType(args []string) error {
	flags := flag.NewFlagSet("type", flag.ContinueOnError)
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
	if flags.NArg() != 3 {
		return errors.New("usage: type <file.gd> <line> <column>")
	}
	pos, err := parsePosition(flags.Arg(1), flags.Arg(2))
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
		report typeReport
		found  bool
	)
	err = sess.read(key, func(snap store.Snapshot) error {
		info, ok := scope.FromSnapshot(snap, sess.catalog).TypeAt(pos)
		if !ok {
			return nil
		}
		found = true
		report = typeReport{File: key, Text: info.Text, Type: info.Type.String(), Range: info.Range}
		if info.Symbol != nil {
			report.Symbol = string(info.Symbol.Kind)
			report.Static = info.Symbol.StaticTyped
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return exitCodeError{code: 2, err: fmt.Errorf("no expression at %s:%s", key, formatPosition(pos))}
	}

	if *jsonOutput {
		return emitJSON(report)
	}
	fmt.Printf("%s: %s\n", report.Text, typeColor.Sprint(report.Type))
	fmt.Printf("range: %s-%s\n", formatPosition(report.Range.Start), formatPosition(report.Range.End))
	if report.Symbol != "" {
		fmt.Printf("declared: %s static=%v\n", report.Symbol, report.Static)
	}
	return nil
}
