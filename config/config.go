package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// GGCRAWL_CRAWLER_CATEGORY or GGCRAWL_DATABASE_URL
const EnvPrefix = "GGCRAWL"

// Output formats understood by the exporters
const (
	FormatJSONL    = "jsonl"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatYAML     = "yaml"
	FormatPostgres = "postgres"
	FormatSheets   = "sheets"
)

// Formats lists every supported output format
var Formats = []string{FormatJSONL, FormatJSON, FormatCSV, FormatYAML, FormatPostgres, FormatSheets}

// Config is the full application configuration
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig controls what is crawled and how politely
type CrawlerConfig struct {
	Category   string   `mapstructure:"category"`
	Categories []string `mapstructure:"categories"`
	// MaxPages caps the number of result pages per category; 0 means no cap
	MaxPages       int           `mapstructure:"max_pages"`
	BaseURL        string        `mapstructure:"base_url"`
	StartURL       string        `mapstructure:"start_url"`
	PageURL        string        `mapstructure:"page_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Delay          time.Duration `mapstructure:"delay"`
	RandomDelay    time.Duration `mapstructure:"random_delay"`
	Parallelism    int           `mapstructure:"parallelism"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	RenderDynamic  bool          `mapstructure:"render_dynamic"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
}

// OutputConfig selects the exporter. An empty path or "-" writes to stdout.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig enables shared visited-URL storage when Addr is set
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Prefix     string        `mapstructure:"prefix"`
	VisitedTTL time.Duration `mapstructure:"visited_ttl"`
}

type SheetsConfig struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	Credentials   string `mapstructure:"credentials"`
}

// TelegramConfig enables run summaries when Token and ChatID are set
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.category", "advocaten")
	v.SetDefault("crawler.categories", []string{})
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.base_url", "https://www.goudengids.nl")
	v.SetDefault("crawler.start_url", "https://www.goudengids.nl/nl/bedrijven/{category}/")
	v.SetDefault("crawler.page_url", "https://www.goudengids.nl/nl/zoeken/{category}/{page}/")
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("crawler.delay", time.Second)
	v.SetDefault("crawler.random_delay", 500*time.Millisecond)
	v.SetDefault("crawler.parallelism", 2)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.render_dynamic", false)
	v.SetDefault("crawler.allowed_domains", []string{"www.goudengids.nl", "goudengids.nl"})

	v.SetDefault("output.format", FormatJSONL)
	v.SetDefault("output.path", "")

	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "ggcrawl")
	v.SetDefault("redis.visited_ttl", 12*time.Hour)
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("schedule.interval", 24*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadConfig reads configuration from path (or ./config.yaml when path is
// empty), a .env file and GGCRAWL_* environment variables, in increasing
// order of precedence
func LoadConfig(path string) (*Config, error) {
	// a missing .env is not an error
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// the service-account JSON may come straight from the environment
	if cfg.Sheets.Credentials == "" {
		cfg.Sheets.Credentials = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// GetDefaultConfig returns the configuration used when nothing is overridden
func GetDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the settings a crawl cannot run without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Crawler.Category) == "" {
		return errors.New("crawler.category must not be empty")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must not be negative, got %d", c.Crawler.MaxPages)
	}
	if c.Crawler.Parallelism < 1 {
		return fmt.Errorf("crawler.parallelism must be at least 1, got %d", c.Crawler.Parallelism)
	}
	if !strings.Contains(c.Crawler.StartURL, "{category}") {
		return fmt.Errorf("crawler.start_url %q has no {category} placeholder", c.Crawler.StartURL)
	}
	if !strings.Contains(c.Crawler.PageURL, "{category}") || !strings.Contains(c.Crawler.PageURL, "{page}") {
		return fmt.Errorf("crawler.page_url %q needs {category} and {page} placeholders", c.Crawler.PageURL)
	}

	if c.Redis.Addr != "" {
		// business pages visited within the ttl are skipped, so a shorter
		// schedule would export nothing on most rounds
		if c.Redis.VisitedTTL <= 0 || c.Redis.VisitedTTL >= c.Schedule.Interval {
			return fmt.Errorf("redis.visited_ttl must be positive and shorter than schedule.interval, got %s and %s",
				c.Redis.VisitedTTL, c.Schedule.Interval)
		}
	}

	switch c.Output.Format {
	case FormatJSONL, FormatJSON, FormatCSV, FormatYAML:
	case FormatPostgres:
		if c.Database.URL == "" {
			return errors.New("output format postgres requires database.url")
		}
	case FormatSheets:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("output format sheets requires sheets.spreadsheet_id")
		}
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", c.Output.Format, strings.Join(Formats, ", "))
	}
	return nil
}

// CategoriesToCrawl returns the scheduled categories, falling back to the
// single configured category
func (c *Config) CategoriesToCrawl() []string {
	var categories []string
	for _, category := range c.Crawler.Categories {
		if category = strings.TrimSpace(category); category != "" {
			categories = append(categories, category)
		}
	}
	if len(categories) == 0 {
		return []string{c.Crawler.Category}
	}
	return categories
}
