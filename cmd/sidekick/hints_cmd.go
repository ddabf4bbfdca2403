package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/shadr/godot-sidekick-lsp/internal/project"
	"github.com/shadr/godot-sidekick-lsp/pkg/hints"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

var (
	pathColor  = color.New(color.FgCyan, color.Bold)
	typeColor  = color.New(color.FgYellow)
	paramColor = color.New(color.FgMagenta)
)

type fileHints struct {
	Path  string       `json:"path"`
	Hints []hints.Hint `json:"hints"`
}

func runHints(args []string) error {
	flags := flag.NewFlagSet("hints", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	noTypes := flags.Bool("no-types", false, "omit variable type hints")
	noParams := flags.Bool("no-params", false, "omit parameter name hints")
	watch := flags.Bool("watch", false, "re-print hints whenever a file changes")
	debounce := flags.Duration("debounce", 250*time.Millisecond, "delay before re-running after a change")
	configPath := flags.String("config", "", "YAML config file")
	jsonOutput := flags.Bool("json", false, "emit JSON output")
	if err := flags.Parse(normalizeFlagArgs(args, map[string]bool{
		"--debounce": true,
		"--config":   true,
	})); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return errors.New("hints requires at least one file or project directory")
	}
	files, err := project.Expand(flags.Args())
	if err != nil {
		return err
	}

	sess, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer sess.close()

	opts := sess.cfg.InlayHints
	if *noTypes {
		opts.VariableTypes = false
	}
	if *noParams {
		opts.ParameterNames = false
	}

	report := func(ctx context.Context, paths []string) error {
		results, err := collectHints(ctx, sess, paths, opts)
		if err != nil {
			return err
		}
		if *jsonOutput {
			return emitJSON(results)
		}
		printHints(results)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := report(ctx, files); err != nil {
		return err
	}
	if !*watch {
		return nil
	}

	log.Info().Strs("files", files).Msg("watching for changes")
	return watchFiles(ctx, files, *debounce, func(changed []string) {
		if err := report(ctx, changed); err != nil {
			log.Warn().Err(err).Msg("hints")
		}
	})
}

// collectHints loads and annotates paths in parallel. Results keep the order
// of paths.
func collectHints(ctx context.Context, sess *session, paths []string, opts hints.Options) ([]fileHints, error) {
	results := make([]fileHints, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), max(len(paths), 1)))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			key, err := sess.load(path)
			if err != nil {
				return err
			}
			return sess.read(key, func(snap store.Snapshot) error {
				collected := hints.Collect(snap, sess.catalog, wholeFile(snap), opts)
				if collected == nil {
					collected = []hints.Hint{}
				}
				results[i] = fileHints{Path: key, Hints: collected}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printHints(results []fileHints) {
	for _, file := range results {
		pathColor.Printf("%s", file.Path)
		fmt.Printf(" (%d)\n", len(file.Hints))
		for _, h := range file.Hints {
			label := typeColor.Sprint(h.Label)
			if h.Kind == hints.KindParameter {
				label = paramColor.Sprint(h.Label)
			}
			fmt.Printf("  %-8s %-9s %s\n", formatPosition(h.Position), h.Kind, label)
		}
	}
}
