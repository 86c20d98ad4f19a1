package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhulett18/threadsrecon/pkg/alerts"
	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/processing"
	"github.com/jhulett18/threadsrecon/pkg/ui"
)

var (
	// Analyze command flags
	inputFile   string
	analyzeOut  string
	archiveFile string
	keywords    []string
	startDate   string
	endDate     string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze collected profile data",
	Long: `Analyze previously collected profile data.

The analysis adds mutual follower markers, parses engagement counters,
extracts hashtags and sentiment, applies date and keyword filters, merges
profiles into the archive, and writes the result file.

When a Telegram bot token and chat id are configured, post text is scanned
against priority keyword sets and matches trigger alerts.`,
	Example: `  # Analyze with config defaults
  threadsrecon analyze

  # Filter to posts mentioning a keyword in a date range
  threadsrecon analyze --keyword breach --start-date 2024-01-01 --end-date 2024-06-30`,
	Run: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&inputFile, "input", "i", "", "input profiles JSON (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "output", "o", "", "analysis result file (default from config)")
	analyzeCmd.Flags().StringVar(&archiveFile, "archive", "", "archive file (default from config)")
	analyzeCmd.Flags().StringSliceVar(&keywords, "keyword", nil, "keyword filter, repeatable")
	analyzeCmd.Flags().StringVar(&startDate, "start-date", "", "keep posts on or after this date")
	analyzeCmd.Flags().StringVar(&endDate, "end-date", "", "keep posts on or before this date")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if len(keywords) > 0 {
		flags["keywords"] = keywords
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if inputFile == "" {
		inputFile = cfg.Analysis.InputFile
	}
	if analyzeOut == "" {
		analyzeOut = cfg.Analysis.OutputFile
	}
	if archiveFile == "" {
		archiveFile = cfg.Analysis.ArchiveFile
	}
	if startDate == "" {
		startDate = cfg.Analysis.StartDate
	}
	if endDate == "" {
		endDate = cfg.Analysis.EndDate
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()

	profiles, err := processing.LoadProfiles(inputFile, log)
	if err != nil {
		ui.PrintError("Failed to load profiles", err.Error())
		os.Exit(1)
	}
	if len(profiles) == 0 {
		ui.PrintWarning("No profiles to analyze in %s", inputFile)
	}

	processor := processing.NewProcessor(profiles, processing.NewLexiconAnalyzer(), log)
	processor.AddMutualFollowerStatus()

	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.ChatID != "" {
		system := alerts.NewTelegramAlertSystem(cfg.Alerts.TelegramToken, cfg.Alerts.ChatID, log)
		monitor := alerts.NewKeywordMonitor(system, priorityKeywords(cfg))
		processor.SetMonitor(monitor)
		log.Info("Telegram keyword monitoring enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := processor.ProcessAndArchive(ctx, analyzeOut, archiveFile, cfg.Analysis.Keywords, startDate, endDate)
	if err != nil {
		log.WithError(err).Error("Analysis failed")
		ui.PrintError("Analysis failed", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Posts in result", fmt.Sprintf("%d", result.Metadata.TotalPosts))
	ui.PrintInfo("Result file", analyzeOut)
	ui.PrintInfo("Archive file", archiveFile)
	ui.PrintSuccess("[ANALYSIS COMPLETE]")
}

// priorityKeywords converts configured keyword sets into alert
// priorities. Unknown priority names are ignored.
func priorityKeywords(cfg *config.Config) map[alerts.Priority][]string {
	if len(cfg.Alerts.PriorityKeywords) == 0 {
		return nil
	}
	sets := make(map[alerts.Priority][]string)
	for name, words := range cfg.Alerts.PriorityKeywords {
		switch alerts.Priority(name) {
		case alerts.PriorityHigh, alerts.PriorityMedium, alerts.PriorityLow:
			sets[alerts.Priority(name)] = words
		}
	}
	if len(sets) == 0 {
		return nil
	}
	return sets
}
