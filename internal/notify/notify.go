// Package notify delivers deal and error notifications. Delivery failures are
// logged and never returned to the caller.
package notify

import (
	"context"
	"log/slog"

	"dealwatch/internal/model"
)

// Notifier receives resolved notification payloads.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
	NotifyError(ctx context.Context, r model.ErrorReport)
}

// Log writes every notification to a logger.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Notifier that only logs.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// Notify logs a deal notification.
func (l *Log) Notify(_ context.Context, n model.Notification) {
	l.log.Info("deal notification",
		"label", n.Label,
		"title", n.Title,
		"url", n.URL,
		"temperature", n.Temperature,
		"subject", Subject(n),
	)
}

// NotifyError logs an error notification.
func (l *Log) NotifyError(_ context.Context, r model.ErrorReport) {
	l.log.Error("error notification", "message", r.Message, "context", r.Context)
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

// Notify forwards n to every notifier.
func (m Multi) Notify(ctx context.Context, n model.Notification) {
	for _, nt := range m {
		nt.Notify(ctx, n)
	}
}

// NotifyError forwards r to every notifier.
func (m Multi) NotifyError(ctx context.Context, r model.ErrorReport) {
	for _, nt := range m {
		nt.NotifyError(ctx, r)
	}
}
