package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shadr/godot-sidekick-lsp/internal/config"
	"github.com/shadr/godot-sidekick-lsp/pkg/lsp"
)

var version = "0.1.0"

func main() {
	flags := flag.NewFlagSet("sidekick-lsp", flag.ContinueOnError)
	showVersion := flags.Bool("version", false, "print the version and exit")
	configPath := flags.String("config", "", "YAML config file (defaults to $"+config.EnvVar+")")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println("sidekick-lsp " + version)
		os.Exit(0)
	}

	// stdout carries the protocol, so logs go to stderr only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(config.Resolve(*configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	level, _ := cfg.Level()
	zerolog.SetGlobalLevel(level)
	enc, _ := cfg.Encoding()

	cat, err := cfg.LoadCatalog()
	if err != nil {
		log.Fatal().Err(err).Msg("load catalog")
	}
	log.Info().Int("classes", cat.Len()).Str("version", version).Msg("catalog loaded")

	svc, err := lsp.NewService(lsp.Options{
		Catalog:  cat,
		Hints:    cfg.InlayHints,
		Encoding: enc,
		Logger:   log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("start service")
	}

	srv := lsp.NewServer(os.Stdin, os.Stdout, log.Logger)
	svc.Register(srv)

	serveErr := srv.Serve()
	svc.Close()
	if serveErr != nil {
		log.Error().Err(serveErr).Msg("serve")
		os.Exit(1)
	}
	os.Exit(svc.ExitCode())
}
