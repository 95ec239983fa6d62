// Package config handles process options from flags and environment variables
// and the rule file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Config holds the process configuration.
type Config struct {
	RulesPath     string
	StoreBackend  string
	DatabasePath  string
	StateDir      string
	LogLevel      string
	FeedURL       string
	FeedFormat    string
	ProxyURL      string
	UserAgent     string
	TelegramToken string
	TelegramChat  int64
	Interval      time.Duration
	Check         bool
}

type rawConfig struct {
	RulesPath    string `long:"rules" env:"DEALWATCH_RULES" default:"./rules.yaml" description:"Path to the rule file"`
	StoreBackend string `long:"store" env:"STORE_BACKEND" default:"sqlite" choice:"sqlite" choice:"file" description:"Watch cache backend"`
	DatabasePath string `long:"db" env:"DATABASE_PATH" default:"./data/dealwatch.db" description:"SQLite database path (sqlite backend)"`
	StateDir     string `long:"state-dir" env:"STATE_DIR" default:"./data" description:"State directory (file backend)"`
	LogLevel     string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level: debug, info, warn, error"`

	FeedURL    string `long:"feed-url" env:"FEED_BASE_URL" default:"https://www.mydealz.de" description:"Base URL of the deal feed"`
	FeedFormat string `long:"feed-format" env:"FEED_FORMAT" default:"json" choice:"json" choice:"rss" description:"Listing format"`
	ProxyURL   string `long:"proxy" env:"PROXY_URL" description:"HTTP proxy for feed requests"`
	UserAgent  string `long:"user-agent" env:"USER_AGENT" default:"dealwatch/1.0" description:"User agent for feed requests"`

	TelegramToken string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (optional)"`
	TelegramChat  int64  `long:"telegram-chat" env:"TELEGRAM_CHAT_ID" description:"Telegram chat to notify"`

	Interval time.Duration `long:"interval" env:"RUN_INTERVAL" default:"0s" description:"Repeat runs at this interval; 0 runs once"`
	Check    bool          `long:"check" description:"Evaluate rules against their test deal and exit"`
}

// Load parses args and the environment. It returns nil, nil when help was
// requested.
func Load(args []string) (*Config, error) {
	var raw rawConfig

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if raw.TelegramToken != "" && raw.TelegramChat == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if raw.Interval < 0 {
		return nil, fmt.Errorf("interval must be non-negative")
	}

	return &Config{
		RulesPath:     raw.RulesPath,
		StoreBackend:  raw.StoreBackend,
		DatabasePath:  raw.DatabasePath,
		StateDir:      raw.StateDir,
		LogLevel:      raw.LogLevel,
		FeedURL:       raw.FeedURL,
		FeedFormat:    raw.FeedFormat,
		ProxyURL:      raw.ProxyURL,
		UserAgent:     raw.UserAgent,
		TelegramToken: raw.TelegramToken,
		TelegramChat:  raw.TelegramChat,
		Interval:      raw.Interval,
		Check:         raw.Check,
	}, nil
}
