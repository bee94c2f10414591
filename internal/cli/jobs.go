package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/ports/secondary"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the delayed job queue",
	Long:  "List scheduled escalation steps, drain due jobs once, and retry failed ones",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delayed jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		c, err := app()
		if err != nil {
			return err
		}
		jobs, err := c.Jobs.ListJobs(NewContext(), secondary.JobFilters{
			Kind:   kind,
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tKEY\tSTATUS\tRUN AT\tATTEMPTS\tLAST ERROR")
		fmt.Fprintln(w, "--\t----\t---\t------\t------\t--------\t----------")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
				j.ID,
				j.Kind,
				orDash(j.DedupKey),
				colorStatus(j.Status),
				formatTime(j.RunAt),
				j.Attempts,
				j.MaxAttempts,
				orDash(j.LastError),
			)
		}
		w.Flush()
		return nil
	},
}

var jobsRunDueCmd = &cobra.Command{
	Use:   "run-due",
	Short: "Process every job that is due now, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app()
		if err != nil {
			return err
		}
		n, err := c.Jobs.RunDue(NewContext())
		if err != nil {
			return fmt.Errorf("failed to run due jobs: %w", err)
		}
		fmt.Printf("✓ Processed %d job(s)\n", n)
		return nil
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry [job-id]",
	Short: "Requeue a failed job with a fresh attempt budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app()
		if err != nil {
			return err
		}
		if err := c.Jobs.RetryFailed(NewContext(), args[0]); err != nil {
			return fmt.Errorf("failed to retry job: %w", err)
		}
		fmt.Printf("✓ Job %s requeued\n", args[0])
		return nil
	},
}

func init() {
	// jobs list flags
	jobsListCmd.Flags().StringP("status", "s", "", "Filter by status (pending|running|done|failed)")
	jobsListCmd.Flags().StringP("kind", "k", "", "Filter by job kind")
	jobsListCmd.Flags().IntP("limit", "n", 50, "Maximum rows to show")

	// Register subcommands
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRunDueCmd)
	jobsCmd.AddCommand(jobsRetryCmd)
}

// JobsCmd returns the jobs command
func JobsCmd() *cobra.Command {
	return jobsCmd
}
