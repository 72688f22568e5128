package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"bookflow/internal/models"
	"bookflow/internal/timeutil"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	Bot        BotConfig        `yaml:"bot"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

// APIConfig describes the scheduling backend.
type APIConfig struct {
	BaseURL         string             `yaml:"base_url"`
	APIKey          string             `yaml:"api_key"`
	TimeoutSeconds  int                `yaml:"timeout_seconds"`
	CacheTTLSeconds int                `yaml:"cache_ttl_seconds"`
	RateLimit       APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BookingConfig struct {
	DefaultTimeZone string `yaml:"default_time_zone"`
	TimeFormat      string `yaml:"time_format"`
	// StaffAssignment is "random" or "first".
	StaffAssignment string `yaml:"staff_assignment"`
	DraftTTLSeconds int    `yaml:"draft_ttl_seconds"`
	CalendarDays    int    `yaml:"calendar_days"`
}

type BotConfig struct {
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

const (
	StaffAssignmentRandom = "random"
	StaffAssignmentFirst  = "first"
)

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.API.BaseURL == "" {
		return errors.New("api base_url is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api base_url %q is not an absolute URL", c.API.BaseURL)
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	return c.Booking.Validate()
}

func (b BookingConfig) Validate() error {
	if !timeutil.ValidZone(b.DefaultTimeZone) {
		return fmt.Errorf("booking.default_time_zone %q is not a valid IANA zone", b.DefaultTimeZone)
	}
	if _, err := timeutil.ParseFormat(b.TimeFormat); err != nil {
		return fmt.Errorf("booking.time_format: %w", err)
	}
	switch b.StaffAssignment {
	case StaffAssignmentRandom, StaffAssignmentFirst:
	default:
		return fmt.Errorf("booking.staff_assignment must be %q or %q", StaffAssignmentRandom, StaffAssignmentFirst)
	}
	return nil
}

// Format returns the parsed display format; call after Validate.
func (b BookingConfig) Format() timeutil.TimeFormat {
	f, err := timeutil.ParseFormat(b.TimeFormat)
	if err != nil {
		return timeutil.Format12Hour
	}
	return f
}

func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 10
	}
	if c.API.CacheTTLSeconds == 0 {
		c.API.CacheTTLSeconds = models.DefaultCatalogCacheTTL
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 5
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 10
	}

	if c.Database.Path == "" {
		c.Database.Path = "data/bookflow.db"
	}

	if c.Booking.DefaultTimeZone == "" {
		c.Booking.DefaultTimeZone = "America/Toronto"
	}
	if c.Booking.TimeFormat == "" {
		c.Booking.TimeFormat = string(timeutil.Format12Hour)
	}
	if c.Booking.StaffAssignment == "" {
		c.Booking.StaffAssignment = StaffAssignmentRandom
	}
	if c.Booking.DraftTTLSeconds == 0 {
		c.Booking.DraftTTLSeconds = models.DefaultDraftTTL
	}
	if c.Booking.CalendarDays == 0 {
		c.Booking.CalendarDays = 30
	}

	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}

	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
}
