package cli

import (
	"time"

	"github.com/fatih/color"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ports/primary"
	"github.com/example/pulse/internal/ports/secondary"
)

// colorStatus highlights a status word for table output.
func colorStatus(status string) string {
	switch status {
	case escalation.StatusActive, primary.BlockerStatusOpen, secondary.JobStatusRunning:
		return color.New(color.FgYellow).Sprint(status)
	case escalation.StatusResolved, secondary.JobStatusDone: // primary.BlockerStatusResolved shares the "resolved" value
		return color.New(color.FgGreen).Sprint(status)
	case secondary.JobStatusFailed:
		return color.New(color.FgRed).Sprint(status)
	case primary.BlockerStatusInProgress, secondary.JobStatusPending:
		return color.New(color.FgBlue).Sprint(status)
	}
	return status
}

func enabledLabel(enabled bool) string {
	if enabled {
		return color.New(color.FgGreen).Sprint("enabled")
	}
	return color.New(color.FgRed).Sprint("disabled")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
