// Package notify contains the Notifier adapters: structured log output,
// Kafka, SMTP mail, and a fan-out combining them.
package notify

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/ports/secondary"
)

// LogNotifier writes each notification as a structured log line.
// It is the default driver and never fails.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs to logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, msg secondary.Notification) error {
	fields := []zap.Field{
		zap.String("recipient", msg.RecipientID),
		zap.String("message", msg.Message),
	}
	for _, k := range sortedKeys(msg.Context) {
		fields = append(fields, zap.String(k, msg.Context[k]))
	}
	n.logger.Info("escalation notification", fields...)
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ secondary.Notifier = (*LogNotifier)(nil)
