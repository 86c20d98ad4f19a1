package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jhulett18/threadsrecon/pkg/logger"
)

// Config holds all configuration options for the Threads recon tool
type Config struct {
	Scraper     ScraperConfig     `yaml:"scraper"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Media       MediaConfig       `yaml:"media"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Logging     logger.Config     `yaml:"logging"`
}

// ScraperConfig holds scraping-specific configuration
type ScraperConfig struct {
	BaseURL     string         `yaml:"base_url"`
	ExecPath    string         `yaml:"exec_path"`    // chromedriver-equivalent; "auto" resolves from PATH
	BrowserPath string         `yaml:"browser_path"` // optional browser binary override
	Usernames   []string       `yaml:"usernames"`
	Browser     BrowserOptions `yaml:"browser_options"`
	UserAgents  []string       `yaml:"user_agents"`
	Timeouts    TimeoutConfig  `yaml:"timeouts"`
	Retries     RetryConfig    `yaml:"retries"`
	Delays      DelayConfig    `yaml:"delays"`
	// MaxSameCount is the number of consecutive stable-count scroll
	// iterations that ends a collection pass.
	MaxSameCount int `yaml:"max_same_count"`
	// MaxWorkers bounds concurrent profile fetches (one browser each).
	MaxWorkers int `yaml:"max_workers"`
}

// BrowserOptions holds browser launch flags
type BrowserOptions struct {
	Headless         bool       `yaml:"headless"`
	Incognito        bool       `yaml:"incognito"`
	WindowSize       WindowSize `yaml:"window_size"`
	DisabledFeatures []string   `yaml:"disabled_features"`
	SkipConsent      bool       `yaml:"skip_consent"`
}

// WindowSize holds the browser window dimensions
type WindowSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TimeoutConfig holds timeout settings for browser operations
type TimeoutConfig struct {
	PageLoad    time.Duration `yaml:"page_load"`
	ElementWait time.Duration `yaml:"element_wait"`
}

// RetryConfig holds retry settings for failed operations
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// DelayConfig holds the bounds for randomized request pacing
type DelayConfig struct {
	MinWait time.Duration `yaml:"min_wait"`
	MaxWait time.Duration `yaml:"max_wait"`
}

// CredentialsConfig holds Instagram credentials used for Threads login
type CredentialsConfig struct {
	Username string `yaml:"instagram_username"`
	Password string `yaml:"instagram_password"`
}

// MediaConfig holds media collection settings
type MediaConfig struct {
	Enabled             bool          `yaml:"enabled"`
	OutputDir           string        `yaml:"output_dir"`
	MaxFileSize         int64         `yaml:"max_file_size"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads"`
	DownloadsPerMinute  int           `yaml:"downloads_per_minute"`
	DownloadTimeout     time.Duration `yaml:"download_timeout"`
	CollectImages       bool          `yaml:"collect_images"`
	CollectVideos       bool          `yaml:"collect_videos"`
}

// AnalysisConfig holds processing settings
type AnalysisConfig struct {
	InputFile   string   `yaml:"input_file"`
	OutputFile  string   `yaml:"output_file"`
	ArchiveFile string   `yaml:"archive_file"`
	Keywords    []string `yaml:"keywords"`
	StartDate   string   `yaml:"start_date"`
	EndDate     string   `yaml:"end_date"`
}

// AlertsConfig holds Telegram alerting settings
type AlertsConfig struct {
	TelegramToken    string              `yaml:"telegram_token"`
	ChatID           string              `yaml:"chat_id"`
	PriorityKeywords map[string][]string `yaml:"priority_keywords"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			BaseURL:  "https://www.threads.net",
			ExecPath: "auto",
			Browser: BrowserOptions{
				Headless:         true,
				Incognito:        true,
				WindowSize:       WindowSize{Width: 1920, Height: 1080},
				DisabledFeatures: []string{"notifications", "extensions", "gpu"},
			},
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			},
			Timeouts: TimeoutConfig{
				PageLoad:    20 * time.Second,
				ElementWait: 10 * time.Second,
			},
			Retries: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 1 * time.Second,
			},
			Delays: DelayConfig{
				MinWait: 1 * time.Second,
				MaxWait: 3 * time.Second,
			},
			MaxSameCount: 3,
			MaxWorkers:   2,
		},
		Media: MediaConfig{
			Enabled:             false,
			OutputDir:           "data",
			MaxFileSize:         50 * 1024 * 1024,
			ConcurrentDownloads: 5,
			DownloadsPerMinute:  60,
			DownloadTimeout:     5 * time.Minute,
			CollectImages:       true,
			CollectVideos:       true,
		},
		Analysis: AnalysisConfig{
			InputFile:   "data/profiles.json",
			OutputFile:  "data/analyzed_profiles.json",
			ArchiveFile: "data/archived_profiles.json",
		},
		Logging: logger.Config{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file,
// then environment variables, then explicit command-line flag overrides.
func Load(path string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()
	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"settings.yaml",
		"settings.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "threadsrecon", "settings.yaml"),
		filepath.Join(os.Getenv("HOME"), ".threadsrecon.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("THREADSRECON_BASE_URL"); v != "" {
		c.Scraper.BaseURL = v
	}
	if v := os.Getenv("THREADSRECON_EXEC_PATH"); v != "" {
		c.Scraper.ExecPath = v
	}
	if v := os.Getenv("THREADSRECON_BROWSER_PATH"); v != "" {
		c.Scraper.BrowserPath = v
	}
	if v := os.Getenv("INSTAGRAM_USERNAME"); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv("INSTAGRAM_PASSWORD"); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Alerts.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Alerts.ChatID = v
	}
	if v := os.Getenv("THREADSRECON_HEADLESS"); v != "" {
		c.Scraper.Browser.Headless = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("THREADSRECON_OUTPUT_DIR"); v != "" {
		c.Media.OutputDir = v
	}
	if v := os.Getenv("THREADSRECON_CONCURRENT_DOWNLOADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Media.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv("THREADSRECON_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// applyFlags applies command-line flag overrides on top of everything else.
func (c *Config) applyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "usernames":
			if v, ok := value.([]string); ok {
				c.Scraper.Usernames = v
			}
		case "headless":
			if v, ok := value.(bool); ok {
				c.Scraper.Browser.Headless = v
			}
		case "exec-path":
			if v, ok := value.(string); ok {
				c.Scraper.ExecPath = v
			}
		case "output-dir":
			if v, ok := value.(string); ok {
				c.Media.OutputDir = v
			}
		case "timeout":
			if v, ok := value.(int); ok && v > 0 {
				c.Scraper.Timeouts.PageLoad = time.Duration(v) * time.Second
			}
		case "element-timeout":
			if v, ok := value.(int); ok && v > 0 {
				c.Scraper.Timeouts.ElementWait = time.Duration(v) * time.Second
			}
		case "max-attempts":
			if v, ok := value.(int); ok && v > 0 {
				c.Scraper.Retries.MaxAttempts = v
			}
		case "concurrent-downloads":
			if v, ok := value.(int); ok && v > 0 {
				c.Media.ConcurrentDownloads = v
			}
		case "collect-media":
			if v, ok := value.(bool); ok {
				c.Media.Enabled = v
			}
		case "keywords":
			if v, ok := value.([]string); ok {
				c.Analysis.Keywords = v
			}
		case "log-level":
			if v, ok := value.(string); ok {
				c.Logging.Level = v
			}
		}
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url is required")
	}
	if !strings.HasPrefix(c.Scraper.BaseURL, "http") {
		return fmt.Errorf("scraper.base_url must be an http(s) URL, got %q", c.Scraper.BaseURL)
	}
	if c.Scraper.Retries.MaxAttempts < 1 {
		return fmt.Errorf("scraper.retries.max_attempts must be at least 1")
	}
	if c.Scraper.Delays.MinWait > c.Scraper.Delays.MaxWait {
		return fmt.Errorf("scraper.delays.min_wait must not exceed max_wait")
	}
	if c.Scraper.MaxSameCount < 1 {
		return fmt.Errorf("scraper.max_same_count must be at least 1")
	}
	if c.Media.ConcurrentDownloads < 1 {
		return fmt.Errorf("media.concurrent_downloads must be at least 1")
	}
	if c.Media.MaxFileSize < 0 {
		return fmt.Errorf("media.max_file_size must not be negative")
	}
	return nil
}

// HasCredentials reports whether an authenticated session can be attempted.
func (c *Config) HasCredentials() bool {
	return c.Credentials.Username != "" && c.Credentials.Password != ""
}
