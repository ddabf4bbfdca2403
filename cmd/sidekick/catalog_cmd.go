package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/shadr/godot-sidekick-lsp/internal/config"
	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
)

func runCatalog(args []string) error {
	flags := flag.NewFlagSet("catalog", flag.ContinueOnError)
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
	if flags.NArg() == 0 {
		return errors.New("usage: catalog show <Class> | catalog list | catalog compile <in.json> <out.msgpack>")
	}

	switch sub := flags.Arg(0); sub {
	case "compile":
		if flags.NArg() != 3 {
			return errors.New("usage: catalog compile <in.json> <out.msgpack>")
		}
		return compileCatalog(flags.Arg(1), flags.Arg(2))
	case "list", "show":
		cfg, err := config.Load(config.Resolve(*configPath))
		if err != nil {
			return err
		}
		cat, err := cfg.LoadCatalog()
		if err != nil {
			return err
		}
		if sub == "list" {
			if *jsonOutput {
				return emitJSON(cat.Names())
			}
			for _, name := range cat.Names() {
				fmt.Println(name)
			}
			return nil
		}
		if flags.NArg() != 2 {
			return errors.New("usage: catalog show <Class>")
		}
		info, ok := cat.Class(flags.Arg(1))
		if !ok {
			return exitCodeError{code: 2, err: fmt.Errorf("class %q is not in the catalog", flags.Arg(1))}
		}
		if *jsonOutput {
			return emitJSON(info)
		}
		printClass(info)
		return nil
	default:
		return fmt.Errorf("unknown catalog subcommand %q", sub)
	}
}

func compileCatalog(in, out string) error {
	cat, err := catalog.Load(in)
	if err != nil {
		return err
	}
	file, err := os.Create(out)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := cat.WriteMsgpack(w); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	log.Info().Str("out", out).Int("classes", cat.Len()).Msg("catalog compiled")
	return nil
}

func printClass(info *catalog.ClassInfo) {
	pathColor.Println(info.Name)
	if info.Parent != "" {
		fmt.Printf("extends: %s\n", info.Parent)
	}
	if info.Constructor != nil {
		fmt.Printf("constructor: %s(%s)\n", info.Name, formatParameters(info.Constructor.Parameters))
	}

	if len(info.Properties) > 0 {
		fmt.Println("properties:")
		for _, name := range sortedKeys(info.Properties) {
			fmt.Printf("  %s: %s\n", name, typeColor.Sprint(info.Properties[name]))
		}
	}
	if len(info.Constants) > 0 {
		fmt.Println("constants:")
		for _, name := range sortedKeys(info.Constants) {
			fmt.Printf("  %s = %s\n", name, info.Constants[name])
		}
	}
	if len(info.Methods) > 0 {
		fmt.Println("methods:")
		for _, name := range sortedKeys(info.Methods) {
			method := info.Methods[name]
			fmt.Printf("  %s(%s) -> %s\n", name, formatParameters(method.Parameters), typeColor.Sprint(method.ReturnType))
		}
	}
	if len(info.Operators) > 0 {
		fmt.Println("operators:")
		for _, key := range sortedKeys(info.Operators) {
			fmt.Printf("  %s -> %s\n", key, typeColor.Sprint(info.Operators[key]))
		}
	}
}

func formatParameters(params []catalog.Parameter) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p.Name + ": " + p.Type.String()
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
