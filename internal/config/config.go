// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Aprilius996/ofac-monitor/internal/filter"
	"github.com/Aprilius996/ofac-monitor/internal/model"
)

// Listing formats.
const (
	FormatHTML = "html"
	FormatRSS  = "rss"
)

// Schedule policies.
const (
	ScheduleInterval = "interval"
	ScheduleWindow   = "window"
)

// State backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Notification channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelLog      = "log"
)

const defaultBaseURL = "https://ofac.treasury.gov"

// Config holds the application configuration.
type Config struct {
	LogLevel string

	BaseURL       string
	ListingURL    string
	ListingFormat string
	HTTPTimeout   time.Duration
	FetchRPS      float64
	UserAgent     string
	SourceTZ      string

	Keywords []string
	// ExtraPatterns are appended to the built-in relevance patterns.
	ExtraPatterns []string

	DedupPolicy model.DedupPolicy

	SchedulePolicy  string
	CheckInterval   time.Duration
	WindowStart     int
	WindowEnd       int
	WindowTZ        string
	FailureCooldown time.Duration

	StateBackend string
	StatePath    string
	DatabasePath string

	NotifyChannel  string
	SMTP           SMTPConfig
	TelegramToken  string
	TelegramChatID int64

	MetricsAddr string
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// DefaultKeywords are the literal relevance keywords used when KEYWORDS is unset.
var DefaultKeywords = []string{"china", "chinese", "hong kong", "中国", "香港"}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		BaseURL:       strings.TrimRight(envOrDefault("BASE_URL", defaultBaseURL), "/"),
		ListingFormat: strings.ToLower(envOrDefault("LISTING_FORMAT", FormatHTML)),
		UserAgent:     envOrDefault("USER_AGENT", "Mozilla/5.0 (compatible; ofac-monitor/1.0)"),
		SourceTZ:      envOrDefault("SOURCE_TZ", "America/New_York"),

		DedupPolicy: model.DedupPolicy(strings.ToLower(envOrDefault("DEDUP_POLICY", string(model.PolicyEntry)))),

		SchedulePolicy: strings.ToLower(envOrDefault("SCHEDULE_POLICY", ScheduleInterval)),
		WindowTZ:       envOrDefault("WINDOW_TZ", "Local"),

		StateBackend: strings.ToLower(envOrDefault("STATE_BACKEND", BackendFile)),
		StatePath:    envOrDefault("STATE_PATH", "./data/state.json"),
		DatabasePath: envOrDefault("DATABASE_PATH", "./data/state.db"),

		NotifyChannel: strings.ToLower(envOrDefault("NOTIFY_CHANNEL", ChannelEmail)),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
	}
	cfg.ListingURL = envOrDefault("LISTING_URL", cfg.BaseURL+"/recent-actions")

	var err error
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CheckInterval, err = durationEnv("CHECK_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.FailureCooldown, err = durationEnv("FAILURE_COOLDOWN", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchRPS, err = floatEnv("FETCH_RPS", 1); err != nil {
		return nil, err
	}
	if cfg.WindowStart, err = intEnv("WINDOW_START", 8); err != nil {
		return nil, err
	}
	if cfg.WindowEnd, err = intEnv("WINDOW_END", 20); err != nil {
		return nil, err
	}

	cfg.Keywords = splitList(os.Getenv("KEYWORDS"), ",")
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = append([]string(nil), DefaultKeywords...)
	}
	cfg.ExtraPatterns = splitList(os.Getenv("KEYWORD_PATTERNS"), ";")

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     smtpPort,
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("MAIL_FROM"),
		To:       splitList(os.Getenv("MAIL_TO"), ","),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ListingFormat {
	case FormatHTML, FormatRSS:
	default:
		return fmt.Errorf("invalid LISTING_FORMAT %q (want html or rss)", c.ListingFormat)
	}
	switch c.DedupPolicy {
	case model.PolicyEntry, model.PolicyDay:
	default:
		return fmt.Errorf("invalid DEDUP_POLICY %q (want entry or day)", c.DedupPolicy)
	}
	switch c.SchedulePolicy {
	case ScheduleInterval:
		if c.CheckInterval <= 0 {
			return fmt.Errorf("CHECK_INTERVAL must be positive, got %s", c.CheckInterval)
		}
	case ScheduleWindow:
		if c.WindowStart < 0 || c.WindowStart > 23 || c.WindowEnd < 1 || c.WindowEnd > 24 || c.WindowStart >= c.WindowEnd {
			return fmt.Errorf("invalid active window %d-%d (want 0 <= start < end <= 24)", c.WindowStart, c.WindowEnd)
		}
	default:
		return fmt.Errorf("invalid SCHEDULE_POLICY %q (want interval or window)", c.SchedulePolicy)
	}
	switch c.StateBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("invalid STATE_BACKEND %q (want file or sqlite)", c.StateBackend)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.FetchRPS <= 0 {
		return fmt.Errorf("FETCH_RPS must be positive, got %v", c.FetchRPS)
	}
	if c.FailureCooldown < 0 {
		return fmt.Errorf("FAILURE_COOLDOWN must not be negative, got %s", c.FailureCooldown)
	}
	for _, p := range c.ExtraPatterns {
		if err := filter.ValidateRegex(p); err != nil {
			return fmt.Errorf("invalid KEYWORD_PATTERNS entry: %w", err)
		}
	}

	switch c.NotifyChannel {
	case ChannelEmail:
		if c.SMTP.Host == "" || c.SMTP.From == "" || len(c.SMTP.To) == 0 {
			return fmt.Errorf("SMTP_HOST, MAIL_FROM and MAIL_TO are required for the email channel")
		}
	case ChannelTelegram:
		if c.TelegramToken == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram channel")
		}
	case ChannelLog:
	default:
		return fmt.Errorf("invalid NOTIFY_CHANNEL %q (want email, telegram or log)", c.NotifyChannel)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		// Bare numbers are seconds, as in the legacy check_interval setting.
		if secs, convErr := strconv.Atoi(raw); convErr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, s := range strings.Split(raw, sep) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
