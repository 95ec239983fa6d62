package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"DEALWATCH_RULES", "STORE_BACKEND", "DATABASE_PATH", "STATE_DIR", "LOG_LEVEL",
	"FEED_BASE_URL", "FEED_FORMAT", "PROXY_URL", "USER_AGENT",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "RUN_INTERVAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	defaults := Config{
		RulesPath:    "./rules.yaml",
		StoreBackend: "sqlite",
		DatabasePath: "./data/dealwatch.db",
		StateDir:     "./data",
		LogLevel:     "info",
		FeedURL:      "https://www.mydealz.de",
		FeedFormat:   "json",
		UserAgent:    "dealwatch/1.0",
	}

	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		want    func() *Config
		wantErr bool
	}{
		{
			name: "defaults applied",
			want: func() *Config { c := defaults; return &c },
		},
		{
			name: "environment values",
			env: map[string]string{
				"DEALWATCH_RULES":    "/etc/dealwatch/rules.yaml",
				"STORE_BACKEND":      "file",
				"STATE_DIR":          "/var/lib/dealwatch",
				"LOG_LEVEL":          "debug",
				"FEED_FORMAT":        "rss",
				"PROXY_URL":          "http://proxy:3128",
				"TELEGRAM_BOT_TOKEN": "tok",
				"TELEGRAM_CHAT_ID":   "-100123",
				"RUN_INTERVAL":       "5m",
			},
			want: func() *Config {
				c := defaults
				c.RulesPath = "/etc/dealwatch/rules.yaml"
				c.StoreBackend = "file"
				c.StateDir = "/var/lib/dealwatch"
				c.LogLevel = "debug"
				c.FeedFormat = "rss"
				c.ProxyURL = "http://proxy:3128"
				c.TelegramToken = "tok"
				c.TelegramChat = -100123
				c.Interval = 5 * time.Minute
				return &c
			},
		},
		{
			name: "flags override environment",
			env:  map[string]string{"LOG_LEVEL": "warn"},
			args: []string{"--log-level", "error", "--check", "--rules", "mine.yaml"},
			want: func() *Config {
				c := defaults
				c.LogLevel = "error"
				c.Check = true
				c.RulesPath = "mine.yaml"
				return &c
			},
		},
		{
			name:    "token without chat",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name:    "unknown store backend",
			args:    []string{"--store", "redis"},
			wantErr: true,
		},
		{
			name:    "invalid interval",
			env:     map[string]string{"RUN_INTERVAL": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load(tt.args)
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
