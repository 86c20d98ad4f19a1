package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage threadsrecon configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Run:   runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the effective configuration with credentials masked.`,
	Run:   runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# threadsrecon configuration file
#
# Environment variables override these values, for example
# INSTAGRAM_USERNAME, INSTAGRAM_PASSWORD, TELEGRAM_BOT_TOKEN,
# THREADSRECON_HEADLESS, THREADSRECON_OUTPUT_DIR.

scraper:
  base_url: "https://www.threads.net"
  # Browser binary; "auto" searches common locations
  exec_path: "auto"
  # Profiles to scrape when none are passed on the command line
  usernames: []
  browser_options:
    headless: true
    incognito: true
    window_size:
      width: 1920
      height: 1080
  timeouts:
    page_load: 20s
    element_wait: 10s
  retries:
    max_attempts: 3
    initial_delay: 1s
  delays:
    min_wait: 1s
    max_wait: 3s
  max_same_count: 3
  max_workers: 2

credentials:
  # Leave empty for anonymous sessions
  instagram_username: ""
  instagram_password: ""

media:
  enabled: false
  output_dir: "data"
  max_file_size: 52428800
  concurrent_downloads: 5
  downloads_per_minute: 60
  download_timeout: 5m
  collect_images: true
  collect_videos: true

analysis:
  input_file: "data/profiles.json"
  output_file: "data/analyzed_profiles.json"
  archive_file: "data/archived_profiles.json"
  keywords: []
  start_date: ""
  end_date: ""

alerts:
  telegram_token: ""
  chat_id: ""
  priority_keywords:
    HIGH: ["urgent", "emergency"]
    MEDIUM: ["important", "attention"]
    LOW: ["update", "info"]

logging:
  level: "info"
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "settings.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to write configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Created %s", configPath))
	fmt.Println("\nEdit the file and then verify it with:")
	fmt.Printf("  threadsrecon config validate -c %s\n", configPath)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Mask credentials before printing.
	if cfg.Credentials.Password != "" {
		cfg.Credentials.Password = "********"
	}
	if cfg.Alerts.TelegramToken != "" {
		cfg.Alerts.TelegramToken = "********"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}

	fmt.Println(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if _, err := config.Load(configFile, nil); err != nil {
		ui.PrintError("Configuration is invalid", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Configuration is valid")
}
