package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/ports/primary"
)

var blockerCmd = &cobra.Command{
	Use:   "blocker",
	Short: "Report and resolve blockers",
	Long:  "Report blockers, which start blocker_reported escalations, and resolve them to stop the chain",
}

var blockerReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a blocker",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		reporterID, _ := cmd.Flags().GetString("reporter")
		taskID, _ := cmd.Flags().GetString("task")
		description, _ := cmd.Flags().GetString("description")

		if reporterID == "" {
			reporterID = globalActorID
		}
		if reporterID == "" {
			return fmt.Errorf("--reporter is required (or pass --as)")
		}
		if err := validateEntityID(projectID, "project"); err != nil {
			return err
		}
		if err := validateEntityID(reporterID, "user"); err != nil {
			return err
		}
		if err := validateEntityID(taskID, "task"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		result, err := c.Blockers.ReportBlocker(NewContext(), primary.ReportBlockerRequest{
			ProjectID:   projectID,
			ReporterID:  reporterID,
			TaskID:      taskID,
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("failed to report blocker: %w", err)
		}

		fmt.Printf("✓ Reported blocker %s\n", result.Blocker.ID)
		if r := result.Escalation; r != nil {
			fmt.Printf("  Escalations started: %d (already running: %d)\n", r.Created, r.Duplicates)
			if r.Errors > 0 {
				fmt.Printf("  ⚠️  %d block(s) failed, see logs\n", r.Errors)
			}
		}
		return nil
	},
}

var blockerStartCmd = &cobra.Command{
	Use:   "start [blocker-id]",
	Short: "Mark a blocker as being worked on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blockerID := args[0]
		if err := validateEntityID(blockerID, "blocker"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		if err := c.Blockers.StartWork(NewContext(), blockerID); err != nil {
			return fmt.Errorf("failed to start blocker: %w", err)
		}

		fmt.Printf("✓ Blocker %s in progress\n", blockerID)
		return nil
	},
}

var blockerResolveCmd = &cobra.Command{
	Use:   "resolve [blocker-id]",
	Short: "Resolve a blocker and stop its escalations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blockerID := args[0]
		resolution, _ := cmd.Flags().GetString("resolution")
		resolvedBy, _ := cmd.Flags().GetString("by")

		if err := validateEntityID(blockerID, "blocker"); err != nil {
			return err
		}
		if err := validateEntityID(resolvedBy, "user"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		result, err := c.Blockers.ResolveBlocker(NewContext(), primary.ResolveBlockerRequest{
			BlockerID:  blockerID,
			Resolution: resolution,
			ResolvedBy: resolvedBy,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve blocker: %w", err)
		}

		fmt.Printf("✓ Blocker %s resolved\n", blockerID)
		fmt.Printf("  Escalations stopped: %d\n", result.ResolvedEscalations)
		if result.RearmedBlocker != "" && result.Escalation != nil {
			fmt.Printf("  Blocker %s re-escalated: %d started\n", result.RearmedBlocker, result.Escalation.Created)
		}
		return nil
	},
}

var blockerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blockers",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		if err := validateEntityID(projectID, "project"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		blockers, err := c.Blockers.ListBlockers(NewContext(), primary.BlockerFilters{
			ProjectID: projectID,
			Status:    status,
		})
		if err != nil {
			return fmt.Errorf("failed to list blockers: %w", err)
		}

		if len(blockers) == 0 {
			fmt.Println("No blockers found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tREPORTER\tTASK\tSTATUS\tCREATED\tDESCRIPTION")
		fmt.Fprintln(w, "--\t-------\t--------\t----\t------\t-------\t-----------")
		for _, b := range blockers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				b.ID,
				b.ProjectID,
				b.ReporterID,
				orDash(b.TaskID),
				colorStatus(b.Status),
				formatTime(b.CreatedAt),
				b.Description,
			)
		}
		w.Flush()
		return nil
	},
}

func init() {
	// blocker report flags
	blockerReportCmd.Flags().StringP("project", "p", "", "Project ID (required)")
	blockerReportCmd.Flags().StringP("reporter", "r", "", "Reporting user (defaults to --as)")
	blockerReportCmd.Flags().StringP("task", "t", "", "Blocked task")
	blockerReportCmd.Flags().StringP("description", "d", "", "What is blocked (required)")

	// blocker resolve flags
	blockerResolveCmd.Flags().String("resolution", "", "How the blocker was resolved")
	blockerResolveCmd.Flags().String("by", "", "Resolving user (defaults to --as)")

	// blocker list flags
	blockerListCmd.Flags().StringP("project", "p", "", "Filter by project")
	blockerListCmd.Flags().StringP("status", "s", "", "Filter by status (open|in_progress|resolved)")

	// Register subcommands
	blockerCmd.AddCommand(blockerReportCmd)
	blockerCmd.AddCommand(blockerStartCmd)
	blockerCmd.AddCommand(blockerResolveCmd)
	blockerCmd.AddCommand(blockerListCmd)
}

// BlockerCmd returns the blocker command
func BlockerCmd() *cobra.Command {
	return blockerCmd
}
