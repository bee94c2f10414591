// Package config loads pulse's runtime configuration from pulse.yaml and
// PULSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/pulse/internal/db"
)

// Notifier driver names accepted in notify.drivers.
const (
	DriverLog   = "log"
	DriverKafka = "kafka"
	DriverMail  = "mail"
)

// Config represents the pulse configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Detectors DetectorsConfig `mapstructure:"detectors"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Activity  ActivityConfig  `mapstructure:"activity"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// SchedulerConfig configures the delayed-job workers.
type SchedulerConfig struct {
	Workers        int           `mapstructure:"workers"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Lease          time.Duration `mapstructure:"lease"`
}

// DetectorsConfig configures the periodic detector scans.
type DetectorsConfig struct {
	DeadlineInterval time.Duration `mapstructure:"deadline_interval"`
	OutputInterval   time.Duration `mapstructure:"output_interval"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
}

// ActivityConfig configures activity log retention. A zero RetentionDays
// keeps entries forever.
type ActivityConfig struct {
	RetentionDays int           `mapstructure:"retention_days"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// NotifyConfig selects and configures the notifier drivers.
type NotifyConfig struct {
	Drivers []string    `mapstructure:"drivers"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
	Mail    MailConfig  `mapstructure:"mail"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Sender   string `mapstructure:"sender"`
}

func setDefaults(v *viper.Viper) error {
	dbPath, err := db.DefaultPath()
	if err != nil {
		return err
	}
	v.SetDefault("database.path", dbPath)
	v.SetDefault("log.debug", false)
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("scheduler.workers", 10)
	v.SetDefault("scheduler.poll_interval", "1s")
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.initial_backoff", "30s")
	v.SetDefault("scheduler.max_backoff", "10m")
	v.SetDefault("scheduler.lease", "5m")

	v.SetDefault("detectors.deadline_interval", "4h")
	v.SetDefault("detectors.output_interval", "24h")
	v.SetDefault("detectors.run_on_start", true)

	v.SetDefault("notify.drivers", []string{DriverLog})
	v.SetDefault("notify.kafka.brokers", []string{})
	v.SetDefault("notify.kafka.topic", "pulse.escalations")
	v.SetDefault("notify.mail.host", "")
	v.SetDefault("notify.mail.port", 587)
	v.SetDefault("notify.mail.user", "")
	v.SetDefault("notify.mail.password", "")
	v.SetDefault("notify.mail.sender", "")

	v.SetDefault("activity.retention_days", 90)
	v.SetDefault("activity.prune_interval", "24h")
	return nil
}

// Load reads configuration. When path is empty, pulse.yaml is looked up in
// the working directory and then in ~/.pulse; a missing file is not an error
// and leaves the defaults in place. Every key can be overridden by an
// environment variable, e.g. PULSE_SCHEDULER_WORKERS.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pulse")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pulse"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints viper cannot express.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive (got %d)", c.Scheduler.Workers)
	}
	if c.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("scheduler.max_attempts must be positive (got %d)", c.Scheduler.MaxAttempts)
	}
	if c.Detectors.DeadlineInterval <= 0 || c.Detectors.OutputInterval <= 0 {
		return fmt.Errorf("detector intervals must be positive")
	}
	if c.Activity.RetentionDays < 0 {
		return fmt.Errorf("activity.retention_days cannot be negative (got %d)", c.Activity.RetentionDays)
	}
	if c.Activity.RetentionDays > 0 && c.Activity.PruneInterval <= 0 {
		return fmt.Errorf("activity.prune_interval must be positive when retention is enabled")
	}

	for _, d := range c.Notify.Drivers {
		switch d {
		case DriverLog:
		case DriverKafka:
			if len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "" {
				return fmt.Errorf("notify.kafka.brokers and notify.kafka.topic are required for the kafka driver")
			}
		case DriverMail:
			if c.Notify.Mail.Host == "" || c.Notify.Mail.Sender == "" {
				return fmt.Errorf("notify.mail.host and notify.mail.sender are required for the mail driver")
			}
		default:
			return fmt.Errorf("unknown notify driver %q (valid: log, kafka, mail)", d)
		}
	}
	return nil
}

// HasDriver reports whether the named notifier driver is enabled.
func (c *Config) HasDriver(name string) bool {
	return slices.Contains(c.Notify.Drivers, name)
}
