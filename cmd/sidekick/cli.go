package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/odvcencio/fluffyui/keybind"
)

var version = "0.1.0"

type commandSpec struct {
	ID       string
	Aliases  []string
	Summary  string
	Usage    string
	Examples []string
	Run      func(args []string) error
}

// cli dispatches subcommands through a keybind registry. Handlers have no
// return value, so the arguments and error of the current invocation travel
// through the struct.
type cli struct {
	registry *keybind.CommandRegistry
	specs    map[string]commandSpec
	aliases  map[string]string
	args     []string
	err      error
}

// exitCodeError carries a process status other than 1.
type exitCodeError struct {
	code int
	err  error
}

func (e exitCodeError) Error() string {
	if e.err == nil {
		return "command failed"
	}
	return e.err.Error()
}

func (e exitCodeError) Unwrap() error { return e.err }

func (e exitCodeError) ExitCode() int {
	if e.code <= 0 {
		return 1
	}
	return e.code
}

func commands() []commandSpec {
	return []commandSpec{
		{
			ID:       "hints",
			Aliases:  []string{"inlay"},
			Summary:  "Print inlay hints for GDScript files or a project",
			Usage:    "hints <file.gd|dir...> [--no-types] [--no-params] [--watch] [--debounce 250ms] [--config file] [--json]",
			Examples: []string{"hints player.gd enemy.gd", "hints . --no-params", "hints scripts/player.gd --watch"},
			Run:      runHints,
		},
		{
			ID:       "type",
			Aliases:  []string{"hover"},
			Summary:  "Resolve the type of the expression at a position",
			Usage:    "type <file.gd> <line> <column> [--config file] [--json]",
			Examples: []string{"type player.gd 12 9"},
			Run:      runType,
		},
		{
			ID:       "scopes",
			Aliases:  []string{"scope"},
			Summary:  "Dump the scope tree and inferred symbol types of a file",
			Usage:    "scopes <file.gd> [--config file] [--json]",
			Examples: []string{"scopes player.gd --json"},
			Run:      runScopes,
		},
		{
			ID:       "extract",
			Aliases:  []string{"refactor"},
			Summary:  "Extract a line range of statements into a new function",
			Usage:    "extract <file.gd> <start-line> <end-line> [--write] [--config file] [--json]",
			Examples: []string{"extract player.gd 14 18", "extract player.gd 14 18 --write"},
			Run:      runExtract,
		},
		{
			ID:       "catalog",
			Aliases:  []string{"types"},
			Summary:  "Inspect the builtin type catalog or compile it to msgpack",
			Usage:    "catalog list | catalog show <Class> | catalog compile <in.json> <out.msgpack> [--config file] [--json]",
			Examples: []string{"catalog show Vector3", "catalog compile type_info.json type_info.msgpack"},
			Run:      runCatalog,
		},
	}
}

func newCLI() *cli {
	c := &cli{
		registry: keybind.NewRegistry(),
		specs:    make(map[string]commandSpec),
		aliases:  make(map[string]string),
	}
	for _, spec := range commands() {
		c.register(spec)
	}
	return c
}

func (c *cli) register(spec commandSpec) {
	c.specs[spec.ID] = spec
	c.aliases[spec.ID] = spec.ID
	for _, alias := range spec.Aliases {
		c.aliases[strings.ToLower(alias)] = spec.ID
	}

	run := spec.Run
	c.registry.Register(keybind.Command{
		ID:          spec.ID,
		Title:       spec.ID,
		Description: spec.Summary,
		Handler: func(keybind.Context) {
			c.err = run(c.args)
		},
	})
}

func (c *cli) lookup(name string) (string, bool) {
	id, ok := c.aliases[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

func (c *cli) Run(args []string) error {
	if len(args) == 0 {
		c.printHelp()
		return nil
	}

	switch strings.TrimSpace(args[0]) {
	case "-h", "--help":
		c.printHelp()
		return nil
	case "-v", "--version", "version":
		fmt.Println("sidekick " + version)
		return nil
	case "help":
		if len(args) == 1 {
			c.printHelp()
			return nil
		}
		id, ok := c.lookup(args[1])
		if !ok {
			return fmt.Errorf("unknown command %q", args[1])
		}
		c.printCommandHelp(id)
		return nil
	}

	id, ok := c.lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q (run 'sidekick help')", args[0])
	}
	if len(args) > 1 && (args[1] == "-h" || args[1] == "--help") {
		c.printCommandHelp(id)
		return nil
	}

	c.args, c.err = args[1:], nil
	if !c.registry.Execute(id, keybind.Context{}) {
		return fmt.Errorf("command %q is not executable", id)
	}
	return c.err
}

func (c *cli) printHelp() {
	ids := make([]string, 0, len(c.specs))
	for id := range c.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(os.Stderr, "sidekick v%s\n\n", version)
	fmt.Println("GDScript type hints and refactoring from the command line")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sidekick <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		spec := c.specs[id]
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", spec.ID, strings.Join(spec.Aliases, ","), spec.Summary)
	}
	_ = tw.Flush()
	fmt.Println()
	fmt.Println("Configuration is read from --config or $SIDEKICK_CONFIG.")
	fmt.Println("Run 'sidekick help <command>' for usage and examples.")
}

func (c *cli) printCommandHelp(id string) {
	spec, ok := c.specs[id]
	if !ok {
		return
	}

	fmt.Printf("%s: %s\n\n", spec.ID, spec.Summary)
	fmt.Printf("Usage:   sidekick %s\n", spec.Usage)
	if len(spec.Aliases) > 0 {
		fmt.Printf("Aliases: %s\n", strings.Join(spec.Aliases, ", "))
	}
	if len(spec.Examples) > 0 {
		fmt.Println("Examples:")
		for _, example := range spec.Examples {
			fmt.Printf("  sidekick %s\n", example)
		}
	}
}
