package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Hunt     HuntConfig
	Notify   NotifyConfig
	Browser  BrowserConfig
	Storage  StorageConfig
	Archive  ArchiveConfig
	ProxyURL string
	LogFile  string
	LogLevel string
	SitesDir string
	Sites    map[string]*SiteConfig
}

type HuntConfig struct {
	Site     string
	Interval time.Duration
	Cron     string
}

type NotifyConfig struct {
	Enabled     bool
	WebhookURL  string
	RoleID      string
	MaxAttempts int
	BackoffBase time.Duration
}

type BrowserConfig struct {
	Headless     bool
	DebugCapture bool
	DelayMS      int
}

type StorageConfig struct {
	SQLitePath  string
	SeenBackend string
	DatabaseURL string
}

type ArchiveConfig struct {
	Dir         string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

type SiteConfig struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	Handler          string         `yaml:"handler"`
	BaseURL          string         `yaml:"base_url"`
	TargetURL        string         `yaml:"target_url"`
	DynamicTimeoutMS int            `yaml:"dynamic_timeout_ms"`
	SetupClicks      []string       `yaml:"setup_clicks"`
	ListingSelector  string         `yaml:"listing_selector"`
	Fields           FieldSelectors `yaml:"fields"`
}

// FieldSelectors maps each listing field to the CSS selector that extracts
// it, relative to the listing container.
type FieldSelectors struct {
	Price   string `yaml:"price"`
	Size    string `yaml:"size"`
	Address string `yaml:"address"`
	Access  string `yaml:"access"`
	URL     string `yaml:"url"`
	Image   string `yaml:"image"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Hunt: HuntConfig{
			Site:     getEnv("HUNT_SITE", "suumo"),
			Interval: getEnvDuration("HUNT_INTERVAL", 5*time.Minute),
			Cron:     os.Getenv("HUNT_CRON"),
		},
		Notify: NotifyConfig{
			Enabled:     getEnvBool("ENABLE_NOTIFICATIONS", false),
			WebhookURL:  os.Getenv("NOTIFICATION_URL"),
			RoleID:      os.Getenv("DISCORD_ROLE_ID"),
			MaxAttempts: getEnvInt("NOTIFY_MAX_ATTEMPTS", 3),
			BackoffBase: getEnvDuration("NOTIFY_BACKOFF_BASE", 2*time.Second),
		},
		Browser: BrowserConfig{
			Headless:     getEnvBool("HEADLESS", true),
			DebugCapture: getEnvBool("DEBUG_CAPTURE", false),
			DelayMS:      getEnvInt("HUNT_DELAY_MS", 500),
		},
		Storage: StorageConfig{
			SQLitePath:  getEnv("SQLITE_PATH", "data/homehunter.db"),
			SeenBackend: getEnv("SEEN_BACKEND", "sqlite"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Archive: ArchiveConfig{
			Dir:         getEnv("ARCHIVE_DIR", "results"),
			S3Endpoint:  os.Getenv("ARCHIVE_S3_ENDPOINT"),
			S3Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			S3Bucket:    os.Getenv("ARCHIVE_S3_BUCKET"),
			S3AccessKey: os.Getenv("ARCHIVE_S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("ARCHIVE_S3_SECRET_KEY"),
		},
		ProxyURL: os.Getenv("HTTP_PROXY_URL"),
		LogFile:  getEnv("LOG_FILE", "homehunter.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		SitesDir: getEnv("SITES_DIR", "config/sites"),
		Sites:    make(map[string]*SiteConfig),
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ActiveSite returns the one site this process monitors.
func (c *Config) ActiveSite() (*SiteConfig, error) {
	site, ok := c.Sites[c.Hunt.Site]
	if !ok {
		return nil, fmt.Errorf("no site config for %q in %s", c.Hunt.Site, c.SitesDir)
	}
	return site, nil
}

func (c *Config) Validate() error {
	if c.Hunt.Interval <= 0 && c.Hunt.Cron == "" {
		return fmt.Errorf("HUNT_INTERVAL must be positive when HUNT_CRON is unset")
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("NOTIFICATION_URL is required when notifications are enabled")
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be at least 1")
	}
	switch c.Storage.SeenBackend {
	case "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for SEEN_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown SEEN_BACKEND %q", c.Storage.SeenBackend)
	}
	site, err := c.ActiveSite()
	if err != nil {
		return err
	}
	if site.TargetURL == "" {
		return fmt.Errorf("site %q has no target_url", site.ID)
	}
	if site.ListingSelector == "" {
		return fmt.Errorf("site %q has no listing_selector", site.ID)
	}
	if site.Fields.URL == "" {
		return fmt.Errorf("site %q has no url field selector", site.ID)
	}
	return nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.SitesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
