package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/scraper"
	"github.com/jhulett18/threadsrecon/pkg/ui"
)

// Legacy single-shot entry point. The full CLI with auth, media and
// analysis lives in cmd/threadsrecon.

var (
	configPath = flag.String("config", "", "Path to configuration file")
	username   = flag.String("username", "", "Instagram username for login (optional)")
	password   = flag.String("password", "", "Instagram password for login (optional)")
	output     = flag.String("output", "", "Output file for collected profiles")
	headless   = flag.Bool("headless", true, "Run the browser headless")
)

func main() {
	flag.Parse()

	ui.PrintLogo()

	args := flag.Args()
	if len(args) == 0 {
		ui.PrintError("Usage: threadsrecon [flags] <username>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var usernames []string
	for _, arg := range args {
		if name := strings.TrimSpace(strings.TrimPrefix(arg, "@")); name != "" {
			usernames = append(usernames, name)
		}
	}

	flags := map[string]interface{}{
		"usernames": usernames,
		"headless":  *headless,
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if *username != "" {
		cfg.Credentials.Username = *username
	}
	if *password != "" {
		cfg.Credentials.Password = *password
	}

	outputFile := *output
	if outputFile == "" {
		outputFile = cfg.Analysis.InputFile
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()
	log.InfoWithFields("threadsrecon starting", map[string]interface{}{
		"targets": len(usernames),
	})

	if !cfg.HasCredentials() {
		ui.PrintWarning("No credentials; running anonymous sessions")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHighlight("[STARTING COLLECTION]")

	s := scraper.New(cfg, log)
	results := s.FetchProfiles(ctx, usernames)

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create output directory", err.Error())
			os.Exit(1)
		}
	}

	data, err := json.MarshalIndent(results, "", "    ")
	if err != nil {
		ui.PrintError("Failed to encode results", err.Error())
		os.Exit(1)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		ui.PrintError("Failed to write results", err.Error())
		os.Exit(1)
	}

	log.WithField("output", outputFile).Info("Collection finished")
	ui.PrintSuccess("[COLLECTION COMPLETE]")
}
