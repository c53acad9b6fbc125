package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Aprilius996/ofac-monitor/internal/model"
)

var allKeys = []string{
	"LOG_LEVEL", "BASE_URL", "LISTING_URL", "LISTING_FORMAT", "HTTP_TIMEOUT", "FETCH_RPS",
	"USER_AGENT", "SOURCE_TZ", "KEYWORDS", "KEYWORD_PATTERNS", "DEDUP_POLICY", "SCHEDULE_POLICY",
	"CHECK_INTERVAL", "WINDOW_START", "WINDOW_END", "WINDOW_TZ", "FAILURE_COOLDOWN",
	"STATE_BACKEND", "STATE_PATH", "DATABASE_PATH", "NOTIFY_CHANNEL", "SMTP_HOST", "SMTP_PORT",
	"SMTP_USER", "SMTP_PASSWORD", "MAIL_FROM", "MAIL_TO", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	"METRICS_ADDR",
}

func defaults() *Config {
	return &Config{
		LogLevel:        "info",
		BaseURL:         "https://ofac.treasury.gov",
		ListingURL:      "https://ofac.treasury.gov/recent-actions",
		ListingFormat:   FormatHTML,
		HTTPTimeout:     30 * time.Second,
		FetchRPS:        1,
		UserAgent:       "Mozilla/5.0 (compatible; ofac-monitor/1.0)",
		SourceTZ:        "America/New_York",
		Keywords:        []string{"china", "chinese", "hong kong", "中国", "香港"},
		DedupPolicy:     model.PolicyEntry,
		SchedulePolicy:  ScheduleInterval,
		CheckInterval:   time.Hour,
		WindowStart:     8,
		WindowEnd:       20,
		WindowTZ:        "Local",
		FailureCooldown: 60 * time.Second,
		StateBackend:    BackendFile,
		StatePath:       "./data/state.json",
		DatabasePath:    "./data/state.db",
		NotifyChannel:   ChannelLog,
		SMTP:            SMTPConfig{Port: 587},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name:    "email channel without smtp settings",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "log channel, defaults applied",
			env:  map[string]string{"NOTIFY_CHANNEL": "log"},
			want: defaults,
		},
		{
			name: "email channel",
			env: map[string]string{
				"SMTP_HOST":     "smtp.example.com",
				"SMTP_PORT":     "2525",
				"SMTP_USER":     "monitor",
				"SMTP_PASSWORD": "secret",
				"MAIL_FROM":     "monitor@example.com",
				"MAIL_TO":       "a@example.com, b@example.com",
			},
			want: func() *Config {
				c := defaults()
				c.NotifyChannel = ChannelEmail
				c.SMTP = SMTPConfig{
					Host:     "smtp.example.com",
					Port:     2525,
					User:     "monitor",
					Password: "secret",
					From:     "monitor@example.com",
					To:       []string{"a@example.com", "b@example.com"},
				}
				return c
			},
		},
		{
			name: "window schedule, day policy, custom keywords",
			env: map[string]string{
				"NOTIFY_CHANNEL":   "log",
				"BASE_URL":         "https://mirror.example.org/",
				"SCHEDULE_POLICY":  "window",
				"WINDOW_START":     "9",
				"WINDOW_END":       "18",
				"WINDOW_TZ":        "Asia/Hong_Kong",
				"DEDUP_POLICY":     "day",
				"KEYWORDS":         "hong kong, macau ,",
				"KEYWORD_PATTERNS": "sanctions.*?macau; 澳门.*?制裁",
				"CHECK_INTERVAL":   "3600",
				"STATE_BACKEND":    "sqlite",
			},
			want: func() *Config {
				c := defaults()
				c.BaseURL = "https://mirror.example.org"
				c.ListingURL = "https://mirror.example.org/recent-actions"
				c.SchedulePolicy = ScheduleWindow
				c.WindowStart = 9
				c.WindowEnd = 18
				c.WindowTZ = "Asia/Hong_Kong"
				c.DedupPolicy = model.PolicyDay
				c.Keywords = []string{"hong kong", "macau"}
				c.ExtraPatterns = []string{"sanctions.*?macau", "澳门.*?制裁"}
				c.StateBackend = BackendSQLite
				return c
			},
		},
		{
			name: "telegram channel",
			env: map[string]string{
				"NOTIFY_CHANNEL":     "telegram",
				"TELEGRAM_BOT_TOKEN": "tok",
				"TELEGRAM_CHAT_ID":   "-100123",
			},
			want: func() *Config {
				c := defaults()
				c.NotifyChannel = ChannelTelegram
				c.TelegramToken = "tok"
				c.TelegramChatID = -100123
				return c
			},
		},
		{
			name:    "telegram channel missing chat id",
			env:     map[string]string{"NOTIFY_CHANNEL": "telegram", "TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"NOTIFY_CHANNEL": "telegram", "TELEGRAM_BOT_TOKEN": "tok", "TELEGRAM_CHAT_ID": "abc"},
			wantErr: true,
		},
		{
			name:    "unknown channel",
			env:     map[string]string{"NOTIFY_CHANNEL": "wechat"},
			wantErr: true,
		},
		{
			name:    "invalid window",
			env:     map[string]string{"NOTIFY_CHANNEL": "log", "SCHEDULE_POLICY": "window", "WINDOW_START": "20", "WINDOW_END": "8"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"NOTIFY_CHANNEL": "log", "HTTP_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "invalid dedup policy",
			env:     map[string]string{"NOTIFY_CHANNEL": "log", "DEDUP_POLICY": "hourly"},
			wantErr: true,
		},
		{
			name:    "invalid keyword pattern",
			env:     map[string]string{"NOTIFY_CHANNEL": "log", "KEYWORD_PATTERNS": "sanctions.*?macau;[unclosed"},
			wantErr: true,
		},
		{
			name:    "invalid listing format",
			env:     map[string]string{"NOTIFY_CHANNEL": "log", "LISTING_FORMAT": "json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range allKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadReportsBadPatternByName(t *testing.T) {
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
	t.Setenv("NOTIFY_CHANNEL", "log")
	t.Setenv("KEYWORD_PATTERNS", "(hong kong")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "KEYWORD_PATTERNS") || !strings.Contains(err.Error(), "(hong kong") {
		t.Errorf("error should name the variable and pattern: %v", err)
	}
}
