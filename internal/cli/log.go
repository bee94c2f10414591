package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/ports/primary"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the activity log",
	Long:  "View and prune the activity log of blocks, blockers and escalation instances (audit trail)",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent activity",
	Long:  "Show recent activity log entries (default 50)",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		actorID, _ := cmd.Flags().GetString("actor")
		entityType, _ := cmd.Flags().GetString("type")
		follow, _ := cmd.Flags().GetBool("follow")

		if limit <= 0 {
			limit = 50
		}

		c, err := app()
		if err != nil {
			return err
		}

		filters := primary.LogFilters{
			ActorID:    actorID,
			EntityType: entityType,
			Limit:      limit,
		}

		ctx, stop := signal.NotifyContext(NewContext(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		entries, err := c.Logs.ListLogs(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}
		printLogEntries(entries)

		if !follow {
			return nil
		}

		if len(entries) > 0 {
			filters.Since = entries[0].Timestamp
		}
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			newEntries, err := c.Logs.ListLogs(ctx, filters)
			if err != nil {
				fmt.Printf("Error fetching logs: %v\n", err)
				continue
			}

			// Oldest first
			for i := len(newEntries) - 1; i >= 0; i-- {
				printLogEntry(newEntries[i])
			}
			if len(newEntries) > 0 {
				filters.Since = newEntries[0].Timestamp
			}
		}
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show [entity-id]",
	Short: "Show activity for a specific entity",
	Long:  "Show activity history for a specific entity (e.g., EBLK-001, BLK-042)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		c, err := app()
		if err != nil {
			return err
		}
		entries, err := c.Logs.ListLogs(NewContext(), primary.LogFilters{
			EntityID: args[0],
			Limit:    limit,
		})
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		printLogEntries(entries)
		return nil
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old log entries",
	Long:  "Delete log entries older than the specified number of days (default 90)",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		c, err := app()
		if err != nil {
			return err
		}
		count, err := c.Logs.PruneLogs(NewContext(), days)
		if err != nil {
			return fmt.Errorf("failed to prune logs: %w", err)
		}

		if count == 0 {
			fmt.Printf("No log entries older than %d days found.\n", days)
		} else {
			fmt.Printf("Pruned %d log entries older than %d days.\n", count, days)
		}
		return nil
	},
}

func printLogEntries(entries []*primary.LogEntry) {
	if len(entries) == 0 {
		fmt.Println("No log entries found.")
		return
	}

	fmt.Printf("Found %d log entries:\n\n", len(entries))

	// Oldest first for tail view
	for i := len(entries) - 1; i >= 0; i-- {
		printLogEntry(entries[i])
	}
}

// printLogEntry prints: timestamp | actor | action | entity_type/entity_id | change
func printLogEntry(entry *primary.LogEntry) {
	fmt.Printf("%s | %-8s | %s %-6s | %s/%s",
		entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
		orDash(entry.ActorID),
		getActionIcon(entry.Action),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
	)

	if entry.Action == "update" && entry.FieldName != "" {
		if entry.OldValue == "" {
			fmt.Printf(" | %s = %s", entry.FieldName, entry.NewValue)
		} else {
			fmt.Printf(" | %s: %s -> %s", entry.FieldName, entry.OldValue, entry.NewValue)
		}
	}

	fmt.Println()
}

func getActionIcon(action string) string {
	switch action {
	case "create":
		return "+"
	case "update":
		return "~"
	case "delete":
		return "-"
	default:
		return "?"
	}
}

func init() {
	// log tail flags
	logTailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logTailCmd.Flags().String("actor", "", "Filter by actor ID")
	logTailCmd.Flags().String("type", "", "Filter by entity type (escalation_block|escalation_instance|blocker)")
	logTailCmd.Flags().BoolP("follow", "f", false, "Follow mode: poll for new entries")

	// log show flags
	logShowCmd.Flags().IntP("limit", "n", 100, "Maximum entries to show")

	// log prune flags
	logPruneCmd.Flags().Int("days", 90, "Delete entries older than N days")

	logCmd.AddCommand(logTailCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logPruneCmd)
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	return logCmd
}
