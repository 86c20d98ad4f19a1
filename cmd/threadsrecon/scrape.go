package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhulett18/threadsrecon/pkg/auth"
	"github.com/jhulett18/threadsrecon/pkg/checkpoint"
	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/media"
	"github.com/jhulett18/threadsrecon/pkg/scraper"
	"github.com/jhulett18/threadsrecon/pkg/threads"
	"github.com/jhulett18/threadsrecon/pkg/ui"
)

var (
	// Scrape command flags
	outputDir    string
	concurrent   int
	maxAttempts  int
	accountName  string
	collectMedia bool
	forceRestart bool
	execPath     string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <username>...",
	Short: "Collect profile data from Threads.net",
	Long: `Collect profile data for one or more Threads.net usernames.

Without credentials the scraper runs an anonymous session; followers and
following lists then come back as "Login required". Credentials can come
from:
  - Stored accounts (use 'threadsrecon auth login' to store)
  - Environment variables (INSTAGRAM_USERNAME and INSTAGRAM_PASSWORD)
  - Configuration file

Results are written as JSON to the analysis input file from the
configuration. Already fetched usernames are skipped on re-runs unless
--force-restart is given.`,
	Example: `  # Scrape a single profile anonymously
  threadsrecon scrape zuck

  # Scrape several profiles with a stored account
  threadsrecon scrape zuck mosseri --account myaccount

  # Include media downloads
  threadsrecon scrape zuck --collect-media

  # Ignore the checkpoint and fetch everything again
  threadsrecon scrape zuck --force-restart`,
	Args: cobra.ArbitraryArgs,
	Run:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for data and media")
	scrapeCmd.Flags().IntVar(&concurrent, "concurrent", 5, "number of concurrent media downloads")
	scrapeCmd.Flags().IntVar(&maxAttempts, "max-retries", 3, "maximum number of retry attempts")
	scrapeCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	scrapeCmd.Flags().BoolVar(&collectMedia, "collect-media", false, "download images and videos")
	scrapeCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "ignore existing checkpoint and fetch everything")
	scrapeCmd.Flags().StringVar(&execPath, "exec-path", "", "browser binary path (default: auto-detect)")
}

func runScrape(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output-dir"] = outputDir
	}
	if concurrent != 5 {
		flags["concurrent-downloads"] = concurrent
	}
	if maxAttempts != 3 {
		flags["max-attempts"] = maxAttempts
	}
	if cmd.Flags().Changed("collect-media") {
		flags["collect-media"] = collectMedia
	}
	if execPath != "" {
		flags["exec-path"] = execPath
	}
	if cmd.Flags().Changed("headless") || rootCmd.PersistentFlags().Changed("headless") {
		flags["headless"] = headless
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	usernames := collectUsernames(args, cfg)
	if len(usernames) == 0 {
		ui.PrintError("No usernames given", "Pass usernames as arguments or set scraper.usernames in the config")
		os.Exit(1)
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()
	log.InfoWithFields("threadsrecon starting", map[string]interface{}{
		"version": version,
		"targets": len(usernames),
	})

	resolveCredentials(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := scraper.New(cfg, log)

	var collector *media.Collector
	if cfg.Media.Enabled {
		collector, err = media.New(cfg.Media, log)
		if err != nil {
			ui.PrintError("Failed to initialize media collector", err.Error())
			os.Exit(1)
		}
		s.SetMediaSink(collector)
	}

	tracker, err := checkpoint.NewManager(cfg.Media.OutputDir, log)
	if err != nil {
		ui.PrintError("Failed to initialize checkpoint", err.Error())
		os.Exit(1)
	}
	if forceRestart {
		if err := tracker.Reset(); err != nil {
			ui.PrintError("Failed to reset checkpoint", err.Error())
			os.Exit(1)
		}
	}
	s.SetTracker(tracker)

	ui.PrintHighlight("[STARTING COLLECTION]")

	var results threads.ProfileSet
	if collector != nil {
		// Media attribution needs one profile at a time so each user's
		// assets land in their own directory.
		results = scrapeWithMedia(ctx, s, collector, tracker, usernames, log)
	} else {
		results = s.FetchProfiles(ctx, usernames)
	}

	if err := saveProfiles(cfg.Analysis.InputFile, results); err != nil {
		log.WithError(err).Error("Failed to save results")
		ui.PrintError("Failed to save results", err.Error())
		os.Exit(1)
	}

	failed := 0
	for _, record := range results {
		if record != nil && record.Error != "" {
			failed++
		}
	}
	log.InfoWithFields("Collection finished", map[string]interface{}{
		"profiles": len(results),
		"failed":   failed,
		"output":   cfg.Analysis.InputFile,
	})

	ui.PrintInfo("Profiles collected", fmt.Sprintf("%d (%d failed)", len(results), failed))
	ui.PrintSuccess("[COLLECTION COMPLETE]")
}

type profileFetcher interface {
	FetchProfile(ctx context.Context, username string) *threads.ProfileRecord
}

type mediaDownloader interface {
	DownloadAllMedia(ctx context.Context, username string) (threads.DownloadStatsSnapshot, error)
	ResetCollection()
}

// scrapeWithMedia fetches profiles sequentially, downloading each
// user's media before moving on.
func scrapeWithMedia(ctx context.Context, s profileFetcher, collector mediaDownloader, tracker scraper.Tracker, usernames []string, log logger.Logger) threads.ProfileSet {
	results := threads.ProfileSet{}
	for _, username := range usernames {
		if ctx.Err() != nil {
			break
		}
		if tracker.IsFetched(username) {
			log.InfoWithFields("Skipping already fetched profile", map[string]interface{}{
				"username": username,
			})
			continue
		}

		record := s.FetchProfile(ctx, username)
		if record.Error == "" {
			stats, err := collector.DownloadAllMedia(ctx, username)
			if err != nil {
				log.WithError(err).WithField("username", username).Warn("Media download failed")
			} else {
				record.MediaSummary = &stats
			}

			if err := tracker.MarkFetched(username); err != nil {
				log.WithError(err).Warn("Failed to update checkpoint")
			}
		}
		// A failed fetch may have queued some URLs already; clear them
		// so they cannot leak into the next identity's batch.
		collector.ResetCollection()
		results[username] = record
	}
	return results
}

// collectUsernames merges command line arguments with configured
// usernames, keeping order and dropping duplicates.
func collectUsernames(args []string, cfg *config.Config) []string {
	seen := make(map[string]bool)
	var usernames []string
	for _, source := range [][]string{args, cfg.Scraper.Usernames} {
		for _, raw := range source {
			username := strings.TrimSpace(strings.TrimPrefix(raw, "@"))
			if username == "" || seen[username] {
				continue
			}
			seen[username] = true
			usernames = append(usernames, username)
		}
	}
	return usernames
}

// resolveCredentials fills the config from stored accounts when the
// config itself carries none. Anonymous collection is a valid
// fallback, so missing credentials only warn.
func resolveCredentials(cfg *config.Config, log logger.Logger) {
	if accountName == "" && cfg.HasCredentials() {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential manager unavailable")
		return
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found", accountName)
			ui.PrintInfo("Available accounts", "Use 'threadsrecon auth list' to see stored accounts")
			os.Exit(1)
		}
	} else {
		account, err = manager.RetrieveDefault()
		if err != nil {
			log.Info("No stored credentials, running anonymous sessions")
			ui.PrintWarning("No credentials found; followers and following will be unavailable")
			return
		}
	}

	cfg.Credentials.Username = account.Username
	cfg.Credentials.Password = account.Password
	log.WithField("account", account.Username).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Username)
}

// saveProfiles writes the profile set as indented JSON through a temp
// file rename.
func saveProfiles(path string, profiles threads.ProfileSet) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(profiles, "", "    ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
