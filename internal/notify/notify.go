// Package notify pushes operational alerts to external channels. The bridge
// raises alerts when the broker rejects an order; delivery is best-effort
// and never sits on the order path.
package notify

import (
	"context"
	"log/slog"
)

// Level is the severity of an alert.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert is one notification to deliver.
type Alert struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier delivers alerts to one backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. Useful in development
// and as a fallback when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.Warn("alert",
		slog.String("level", string(alert.Level)),
		slog.String("title", alert.Title),
		slog.String("message", alert.Message))
	return nil
}
