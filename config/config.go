// config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"divvymon/models"
)

type ServerConfig struct {
	Port string `yaml:"port"` // empty disables the admin HTTP surface
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type APITimeoutsConfig struct {
	SodaStr      string `yaml:"soda"`
	StaticMapStr string `yaml:"staticmap"`
	BlueskyStr   string `yaml:"bluesky"`

	// Parsed durations
	Soda      time.Duration `yaml:"-"`
	StaticMap time.Duration `yaml:"-"`
	Bluesky   time.Duration `yaml:"-"`
}

type APIConfig struct {
	StationsCSVURL string            `yaml:"stations_csv_url"`
	PortalPageURL  string            `yaml:"portal_page_url"`
	StaticMapURL   string            `yaml:"staticmap_url"`
	BlueskyURL     string            `yaml:"bluesky_url"`
	PageSize       int               `yaml:"page_size"`
	MaxRetries     int               `yaml:"max_retries"`
	Timeouts       APITimeoutsConfig `yaml:"timeouts"`
}

type FeaturesConfig struct {
	PostingEnabled bool   `yaml:"posting_enabled"`
	TestMode       bool   `yaml:"test_mode"`
	MaxNewPosts    int    `yaml:"max_new_posts"` // 0 = unlimited
	ForceStationID string `yaml:"force_station_id"`
}

type MonitorConfig struct {
	PollIntervalStr  string `yaml:"poll_interval"`
	ErrorCooldownStr string `yaml:"error_cooldown"`

	PollInterval  time.Duration `yaml:"-"`
	ErrorCooldown time.Duration `yaml:"-"`
}

type ScraperSelectorsConfig struct {
	PortalLastUpdated string `yaml:"portal_last_updated"`
}

type Config struct {
	Server           ServerConfig           `yaml:"server"`
	Database         DatabaseConfig         `yaml:"database"`
	API              APIConfig              `yaml:"api"`
	Features         FeaturesConfig         `yaml:"features"`
	Monitor          MonitorConfig          `yaml:"monitor"`
	Bounds           models.Bounds          `yaml:"bounds"`
	ScraperSelectors ScraperSelectorsConfig `yaml:"scraper_selectors"`
}

// Load reads and parses the YAML config file, fills in defaults, and parses
// the duration strings. The returned value is meant to be passed explicitly to
// each component at construction; there is no package-level config state.
func Load(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.API.StationsCSVURL == "" {
		cfg.API.StationsCSVURL = "https://data.cityofchicago.org/resource/bbyy-e7gq.csv"
	}
	if cfg.API.BlueskyURL == "" {
		cfg.API.BlueskyURL = "https://bsky.social"
	}
	if cfg.API.StaticMapURL == "" {
		cfg.API.StaticMapURL = "https://staticmap.openstreetmap.de/staticmap.php"
	}
	if cfg.API.PageSize <= 0 {
		cfg.API.PageSize = 1000
	}
	if cfg.API.MaxRetries <= 0 {
		cfg.API.MaxRetries = 3
	}

	// Chicago bounding box, matching the station feed's coverage area.
	if cfg.Bounds == (models.Bounds{}) {
		cfg.Bounds = models.Bounds{MinLat: 41.6, MaxLat: 42.1, MinLon: -87.9, MaxLon: -87.5}
	}

	var err error
	if cfg.API.Timeouts.Soda, err = parseDurationOr(cfg.API.Timeouts.SodaStr, 30*time.Second); err != nil {
		return fmt.Errorf("failed to parse api.timeouts.soda: %w", err)
	}
	if cfg.API.Timeouts.StaticMap, err = parseDurationOr(cfg.API.Timeouts.StaticMapStr, 20*time.Second); err != nil {
		return fmt.Errorf("failed to parse api.timeouts.staticmap: %w", err)
	}
	if cfg.API.Timeouts.Bluesky, err = parseDurationOr(cfg.API.Timeouts.BlueskyStr, 30*time.Second); err != nil {
		return fmt.Errorf("failed to parse api.timeouts.bluesky: %w", err)
	}
	if cfg.Monitor.PollInterval, err = parseDurationOr(cfg.Monitor.PollIntervalStr, 15*time.Minute); err != nil {
		return fmt.Errorf("failed to parse monitor.poll_interval: %w", err)
	}
	if cfg.Monitor.ErrorCooldown, err = parseDurationOr(cfg.Monitor.ErrorCooldownStr, time.Minute); err != nil {
		return fmt.Errorf("failed to parse monitor.error_cooldown: %w", err)
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
