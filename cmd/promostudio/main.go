package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eringen/promostudio"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "init":
		path := promostudio.DefaultConfigPath
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := runInit(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("promostudio %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := promostudio.LoadConfig(promostudio.EnvOr("PROMOSTUDIO_CONFIG", promostudio.DefaultConfigPath))
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	app := promostudio.New(cfg)
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("shut down")
	return nil
}

func printUsage() {
	fmt.Println(`promostudio - A promotional content studio built with Go, Echo, and templ

Usage:
  promostudio <command> [arguments]

Commands:
  serve          Start the studio server
  init [path]    Write a starter config (default promostudio.yml)
  version        Print the promostudio version
  help           Show this help message

Environment:
  PROMOSTUDIO_CONFIG           Config file path (default promostudio.yml)
  PROMOSTUDIO_ADDR             Listen address
  PROMOSTUDIO_DATABASE_PATH    SQLite path
  PROMOSTUDIO_SESSION_SECRET   Cookie session secret
  PROMOSTUDIO_COOKIE_SECURE    true behind HTTPS
  PROMOSTUDIO_LOG_LEVEL        debug, info, warn, error
  PROMOSTUDIO_TIMEZONE         Fallback zone for scheduled posts

Examples:
  promostudio init
  promostudio serve`)
}
