// Package wire builds the pulse object graph: database, repositories,
// notifiers, services and schedulers.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/adapters/notify"
	"github.com/example/pulse/internal/adapters/sqlite"
	"github.com/example/pulse/internal/app"
	"github.com/example/pulse/internal/config"
	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/db"
	"github.com/example/pulse/internal/scheduler"
)

// PruneActivityJob names the periodic activity log retention job.
const PruneActivityJob = "activity-prune"

// Container holds the wired application. Callers must Close it.
type Container struct {
	DB *sql.DB

	Blocks    *app.BlockServiceImpl
	Engine    *app.EscalationEngine
	Detectors *app.Detectors
	Blockers  *app.BlockerServiceImpl
	Logs      *app.LogServiceImpl

	Notifier *notify.Fanout
	Jobs     *scheduler.Delayed
	Periodic *scheduler.Periodic

	Config *config.Config
	Logger *zap.Logger

	closers []io.Closer
}

// New opens the database and wires every service from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	database, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	c, err := NewWithDB(database, cfg, logger)
	if err != nil {
		database.Close()
		return nil, err
	}
	c.closers = append(c.closers, database)
	return c, nil
}

// NewWithDB wires every service over an already-open, migrated database.
// The database is not closed by Container.Close.
func NewWithDB(database *sql.DB, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{DB: database, Config: cfg, Logger: logger}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	activityRepo := sqlite.NewActivityLogRepository(database)
	logWriter := sqlite.NewLogWriterAdapter(activityRepo)
	blockRepo := sqlite.NewEscalationBlockRepository(database, logWriter)
	instanceRepo := sqlite.NewEscalationInstanceRepository(database, logWriter)
	blockerRepo := sqlite.NewBlockerRepository(database, logWriter)
	members := sqlite.NewMembershipRepository(database)
	workItems := sqlite.NewWorkItemRepository(database)
	queue := sqlite.NewJobQueue(database)

	fanout, err := c.buildNotifier(members)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Notifier = fanout

	c.Jobs = scheduler.NewDelayed(queue, scheduler.Config{
		Workers:        cfg.Scheduler.Workers,
		PollInterval:   cfg.Scheduler.PollInterval,
		MaxAttempts:    cfg.Scheduler.MaxAttempts,
		InitialBackoff: cfg.Scheduler.InitialBackoff,
		MaxBackoff:     cfg.Scheduler.MaxBackoff,
		Lease:          cfg.Scheduler.Lease,
	}, logger)

	// Create services (primary ports implementation)
	c.Engine = app.NewEscalationEngine(blockRepo, instanceRepo, members, fanout, c.Jobs, logger)
	c.Detectors = app.NewDetectors(blockRepo, instanceRepo, members, workItems, c.Engine, logger)
	c.Blocks = app.NewBlockService(blockRepo, logger)
	c.Blockers = app.NewBlockerService(blockerRepo, c.Detectors, c.Engine, logger)
	c.Logs = app.NewLogService(activityRepo, logger)

	c.Jobs.Register(escalation.JobKindStep, scheduler.JSONHandler(c.Engine.HandleStepJob))

	periodic := []scheduler.PeriodicJob{
		{
			Name:       escalation.TriggerDeadlineRisk,
			Interval:   cfg.Detectors.DeadlineInterval,
			RunOnStart: cfg.Detectors.RunOnStart,
			Run: func(ctx context.Context) error {
				_, err := c.Detectors.ScanDeadlineRisk(ctx)
				return err
			},
		},
		{
			Name:       escalation.TriggerOutputBelowThreshold,
			Interval:   cfg.Detectors.OutputInterval,
			RunOnStart: cfg.Detectors.RunOnStart,
			Run: func(ctx context.Context) error {
				_, err := c.Detectors.ScanOutputThreshold(ctx)
				return err
			},
		},
	}
	if days := cfg.Activity.RetentionDays; days > 0 {
		periodic = append(periodic, scheduler.PeriodicJob{
			Name:     PruneActivityJob,
			Interval: cfg.Activity.PruneInterval,
			Run: func(ctx context.Context) error {
				_, err := c.Logs.PruneLogs(ctx, days)
				return err
			},
		})
	}
	c.Periodic = scheduler.NewPeriodic(logger, periodic...)

	return c, nil
}

func (c *Container) buildNotifier(members *sqlite.MembershipRepository) (*notify.Fanout, error) {
	cfg := c.Config.Notify
	var drivers []notify.Driver

	for _, name := range cfg.Drivers {
		switch name {
		case config.DriverLog:
			drivers = append(drivers, notify.Driver{Name: name, Notifier: notify.NewLogNotifier(c.Logger)})

		case config.DriverKafka:
			k, err := notify.NewKafkaNotifier(notify.KafkaConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
			}, c.Logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create kafka notifier: %w", err)
			}
			c.closers = append(c.closers, k)
			drivers = append(drivers, notify.Driver{Name: name, Notifier: k})

		case config.DriverMail:
			m, err := notify.NewMailNotifier(notify.MailConfig{
				Host:     cfg.Mail.Host,
				Port:     cfg.Mail.Port,
				User:     cfg.Mail.User,
				Password: cfg.Mail.Password,
				Sender:   cfg.Mail.Sender,
			}, members, c.Logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create mail notifier: %w", err)
			}
			drivers = append(drivers, notify.Driver{Name: name, Notifier: m})

		default:
			return nil, fmt.Errorf("unknown notify driver %q", name)
		}
	}

	if len(drivers) == 0 {
		drivers = append(drivers, notify.Driver{Name: config.DriverLog, Notifier: notify.NewLogNotifier(c.Logger)})
	}
	return notify.NewFanout(c.Logger, drivers...), nil
}

// Close releases notifier connections and, when opened by New, the database.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
