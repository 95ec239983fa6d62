package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/diagnose"
	"dealwatch/internal/notify"
	"dealwatch/internal/scheduler"
	"dealwatch/internal/source"
	"dealwatch/internal/storage"
	"dealwatch/internal/watcher"
)

const requestTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg == nil {
		return
	}

	log := newLogger(cfg.LogLevel)

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Error("load rules", "path", cfg.RulesPath, "error", err)
		os.Exit(1)
	}

	httpClient, err := source.NewHTTPClient(cfg.ProxyURL, requestTimeout)
	if err != nil {
		log.Error("create http client", "error", err)
		os.Exit(1)
	}
	src := source.New(httpClient, cfg.FeedURL,
		source.WithFormat(source.Format(cfg.FeedFormat)),
		source.WithUserAgent(cfg.UserAgent),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Check {
		if _, err := diagnose.Run(ctx, src, rules.Rules, os.Stdout); err != nil {
			log.Error("check rules", "error", err)
			os.Exit(1)
		}
		return
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	notifier, err := newNotifier(cfg, rules.Options, log)
	if err != nil {
		log.Error("create notifier", "error", err)
		os.Exit(1)
	}

	w := watcher.New(cache.New(store), src, notifier, rules, log)

	if cfg.Interval > 0 {
		log.Info("starting scheduler", "interval", cfg.Interval, "rules", len(rules.Rules))
		scheduler.New(w, cfg.Interval, log).Run(ctx)
		log.Info("scheduler stopped")
		return
	}

	if err := w.Run(ctx); err != nil {
		log.Error("watch run failed", "error", err)
		_ = store.Close()
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.StoreBackend == config.StoreFile {
		store, err := storage.NewFile(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdatedAt(ctx, cache.Key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Info("no watch cache yet", "path", cfg.DatabasePath)
	case err != nil:
		_ = store.Close()
		return nil, err
	default:
		log.Debug("watch cache found", "path", cfg.DatabasePath, "updated_at", updated)
	}
	return store, nil
}

func newNotifier(cfg *config.Config, opts config.Options, log *slog.Logger) (notify.Notifier, error) {
	var multi notify.Multi
	if opts.LogNotifications {
		multi = append(multi, notify.NewLog(log))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChat, log)
		if err != nil {
			return nil, err
		}
		multi = append(multi, tg)
	}
	if len(multi) == 0 {
		log.Warn("no notification target configured")
	}
	return multi, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
