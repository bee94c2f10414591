package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected http.addr ':8080', got %q", cfg.HTTP.Addr)
	}
	if cfg.Scheduler.Workers != 10 {
		t.Errorf("expected 10 workers, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Scheduler.MaxAttempts)
	}
	if cfg.Detectors.DeadlineInterval != 4*time.Hour {
		t.Errorf("expected deadline interval 4h, got %v", cfg.Detectors.DeadlineInterval)
	}
	if cfg.Detectors.OutputInterval != 24*time.Hour {
		t.Errorf("expected output interval 24h, got %v", cfg.Detectors.OutputInterval)
	}
	if !strings.HasSuffix(cfg.Database.Path, filepath.Join(".pulse", "pulse.db")) {
		t.Errorf("unexpected default database path %q", cfg.Database.Path)
	}
	if !cfg.HasDriver(DriverLog) || cfg.HasDriver(DriverKafka) {
		t.Errorf("expected only the log driver, got %v", cfg.Notify.Drivers)
	}
	if cfg.Activity.RetentionDays != 90 || cfg.Activity.PruneInterval != 24*time.Hour {
		t.Errorf("unexpected activity retention %+v", cfg.Activity)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/pulse-test.db
scheduler:
  workers: 2
  poll_interval: 250ms
detectors:
  deadline_interval: 1h
  run_on_start: false
notify:
  drivers: [log, kafka]
  kafka:
    brokers: [localhost:9092]
    topic: escalations
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/pulse-test.db" {
		t.Errorf("expected database path from file, got %q", cfg.Database.Path)
	}
	if cfg.Scheduler.Workers != 2 || cfg.Scheduler.PollInterval != 250*time.Millisecond {
		t.Errorf("unexpected scheduler config %+v", cfg.Scheduler)
	}
	if cfg.Detectors.DeadlineInterval != time.Hour || cfg.Detectors.RunOnStart {
		t.Errorf("unexpected detectors config %+v", cfg.Detectors)
	}
	if !cfg.HasDriver(DriverKafka) {
		t.Error("expected kafka driver enabled")
	}
	if cfg.Notify.Kafka.Topic != "escalations" || len(cfg.Notify.Kafka.Brokers) != 1 {
		t.Errorf("unexpected kafka config %+v", cfg.Notify.Kafka)
	}
	if cfg.Detectors.OutputInterval != 24*time.Hour {
		t.Error("expected unset keys to keep defaults")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  workers: 2\n")
	t.Setenv("PULSE_SCHEDULER_WORKERS", "7")
	t.Setenv("PULSE_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.Workers != 7 {
		t.Errorf("expected env to win, got %d workers", cfg.Scheduler.Workers)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("expected env http.addr, got %q", cfg.HTTP.Addr)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown driver", "notify:\n  drivers: [pager]\n", "unknown notify driver"},
		{"kafka without brokers", "notify:\n  drivers: [kafka]\n", "notify.kafka.brokers"},
		{"mail without host", "notify:\n  drivers: [mail]\n", "notify.mail.host"},
		{"zero workers", "scheduler:\n  workers: -1\n", "scheduler.workers"},
		{"negative retention", "activity:\n  retention_days: -1\n", "activity.retention_days"},
		{"retention without interval", "activity:\n  prune_interval: 0s\n", "activity.prune_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
