package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/ports/primary"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Inspect escalation instances",
	Long:  "List, show and manually resolve running escalation chains",
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalation instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		projectID, _ := cmd.Flags().GetString("project")
		blockID, _ := cmd.Flags().GetString("block")
		userID, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := validateEntityID(projectID, "project"); err != nil {
			return err
		}
		if err := validateEntityID(blockID, "block"); err != nil {
			return err
		}
		if err := validateEntityID(userID, "user"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		instances, err := c.Engine.ListInstances(NewContext(), primary.InstanceFilters{
			ProjectID:    projectID,
			BlockID:      blockID,
			Status:       status,
			TargetUserID: userID,
			Limit:        limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		if len(instances) == 0 {
			fmt.Println("No escalation instances found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBLOCK\tTRIGGER\tTARGET\tSTEP\tSTATUS\tSTARTED")
		fmt.Fprintln(w, "--\t-----\t-------\t------\t----\t------\t-------")
		for _, inst := range instances {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				inst.ID,
				inst.EscalationBlockID,
				inst.TriggerType,
				inst.TargetUserID,
				inst.CurrentStep,
				colorStatus(inst.Status),
				formatTime(inst.StartedAt),
			)
		}
		w.Flush()
		return nil
	},
}

var instanceShowCmd = &cobra.Command{
	Use:   "show [instance-id]",
	Short: "Show instance details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app()
		if err != nil {
			return err
		}
		inst, err := c.Engine.GetInstance(NewContext(), args[0])
		if err != nil {
			return fmt.Errorf("instance not found: %w", err)
		}

		fmt.Printf("Instance: %s\n", inst.ID)
		fmt.Printf("Block: %s\n", inst.EscalationBlockID)
		fmt.Printf("Project: %s\n", inst.ProjectID)
		fmt.Printf("Trigger: %s\n", inst.TriggerType)
		fmt.Printf("Target User: %s\n", inst.TargetUserID)
		if inst.BlockerID != "" {
			fmt.Printf("Blocker: %s\n", inst.BlockerID)
		}
		if !inst.Subject.IsZero() {
			fmt.Printf("Subject: %s\n", inst.Subject)
		}
		fmt.Printf("Status: %s\n", colorStatus(inst.Status))
		fmt.Printf("Next Step: %d\n", inst.CurrentStep)
		fmt.Printf("Started: %s\n", formatTime(inst.StartedAt))
		fmt.Printf("Last Escalated: %s\n", formatTime(inst.LastEscalatedAt))
		if !inst.ResolvedAt.IsZero() {
			fmt.Printf("Resolved: %s (%s)\n", formatTime(inst.ResolvedAt), orDash(inst.ResolutionReason))
		}
		return nil
	},
}

var instanceResolveCmd = &cobra.Command{
	Use:   "resolve [instance-id]",
	Short: "Resolve an active instance and stop its chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		c, err := app()
		if err != nil {
			return err
		}
		err = c.Engine.ResolveInstance(NewContext(), primary.ResolveInstanceRequest{
			InstanceID: args[0],
			Reason:     reason,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve instance: %w", err)
		}

		fmt.Printf("✓ Instance %s resolved\n", args[0])
		return nil
	},
}

func init() {
	// instance list flags
	instanceListCmd.Flags().StringP("status", "s", "", "Filter by status (active|resolved)")
	instanceListCmd.Flags().StringP("project", "p", "", "Filter by project")
	instanceListCmd.Flags().StringP("block", "b", "", "Filter by block")
	instanceListCmd.Flags().StringP("user", "u", "", "Filter by target user")
	instanceListCmd.Flags().IntP("limit", "n", 50, "Maximum rows to show")

	// instance resolve flags
	instanceResolveCmd.Flags().StringP("reason", "r", "manual", "Resolution reason")

	// Register subcommands
	instanceCmd.AddCommand(instanceListCmd)
	instanceCmd.AddCommand(instanceShowCmd)
	instanceCmd.AddCommand(instanceResolveCmd)
}

// InstanceCmd returns the instance command
func InstanceCmd() *cobra.Command {
	return instanceCmd
}
