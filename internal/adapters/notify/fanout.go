package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/metrics"
	"github.com/example/pulse/internal/ports/secondary"
)

// Driver is a named notifier inside a Fanout.
type Driver struct {
	Name     string
	Notifier secondary.Notifier
}

// Fanout delivers each notification to every driver. A failing driver does
// not prevent delivery through the others; the joined error is returned.
type Fanout struct {
	drivers []Driver
	logger  *zap.Logger
}

// NewFanout creates a notifier that delivers through all drivers in order.
func NewFanout(logger *zap.Logger, drivers ...Driver) *Fanout {
	return &Fanout{drivers: drivers, logger: logger.Named("fanout")}
}

// Notify delivers msg through every driver.
func (f *Fanout) Notify(ctx context.Context, msg secondary.Notification) error {
	var errs []error
	for _, d := range f.drivers {
		if err := d.Notifier.Notify(ctx, msg); err != nil {
			metrics.NotificationFailures.WithLabelValues(d.Name).Inc()
			f.logger.Warn("notification driver failed",
				zap.String("driver", d.Name),
				zap.String("recipient", msg.RecipientID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(d.Name).Inc()
	}
	return errors.Join(errs...)
}

// Drivers returns the configured driver names.
func (f *Fanout) Drivers() []string {
	names := make([]string, 0, len(f.drivers))
	for _, d := range f.drivers {
		names = append(names, d.Name)
	}
	return names
}

var _ secondary.Notifier = (*Fanout)(nil)
