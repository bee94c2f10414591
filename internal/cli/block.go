package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ports/primary"
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage escalation blocks",
	Long:  "Create, list and toggle the escalation blocks that define how each project escalates",
}

var blockApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update blocks from a YAML file",
	Long: `Create or update escalation blocks from a YAML file.

Documents without an id create a new block. Documents with an id replace
that block's definition.

Example:
  project: PROJ-001
  name: Blocked work
  trigger: blocker_reported
  target: {type: all}
  steps:
    - {delayMinutes: 0, routeType: reports_to}
    - {delayMinutes: 240, routeType: role, routeRole: pm}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		var r io.Reader = os.Stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer f.Close()
			r = f
		}

		defs, err := parseBlockFiles(r)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", file, err)
		}

		c, err := app()
		if err != nil {
			return err
		}
		ctx := NewContext()

		for _, def := range defs {
			if err := validateEntityID(def.ID, "block"); err != nil {
				return err
			}
			if def.ID == "" {
				block, err := c.Blocks.CreateBlock(ctx, def.request())
				if err != nil {
					return fmt.Errorf("failed to create block %q: %w", def.Name, err)
				}
				fmt.Printf("✓ Created block %s: %s\n", block.ID, block.Name)
				continue
			}
			block, err := c.Blocks.UpdateBlock(ctx, def.ID, def.request())
			if err != nil {
				return fmt.Errorf("failed to update block %s: %w", def.ID, err)
			}
			fmt.Printf("✓ Updated block %s: %s\n", block.ID, block.Name)
		}
		return nil
	},
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the blocks of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		if projectID == "" {
			return fmt.Errorf("--project is required")
		}
		if err := validateEntityID(projectID, "project"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		blocks, err := c.Blocks.ListBlocks(NewContext(), projectID)
		if err != nil {
			return fmt.Errorf("failed to list blocks: %w", err)
		}

		if len(blocks) == 0 {
			fmt.Println("No escalation blocks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTRIGGER\tTARGET\tSTEPS\tSTATE")
		fmt.Fprintln(w, "--\t----\t-------\t------\t-----\t-----")
		for _, b := range blocks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				b.ID,
				b.Name,
				b.TriggerType,
				describeTarget(b.Target),
				len(b.Steps),
				enabledLabel(b.Enabled),
			)
		}
		w.Flush()
		return nil
	},
}

var blockShowCmd = &cobra.Command{
	Use:   "show [block-id]",
	Short: "Show block details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blockID := args[0]
		if err := validateEntityID(blockID, "block"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		block, err := c.Blocks.GetBlock(NewContext(), blockID)
		if err != nil {
			return fmt.Errorf("block not found: %w", err)
		}

		printBlock(block)
		return nil
	},
}

var blockDeleteCmd = &cobra.Command{
	Use:   "delete [block-id]",
	Short: "Delete a block and its escalation instances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blockID := args[0]
		if err := validateEntityID(blockID, "block"); err != nil {
			return err
		}

		c, err := app()
		if err != nil {
			return err
		}
		if err := c.Blocks.DeleteBlock(NewContext(), blockID); err != nil {
			return fmt.Errorf("failed to delete block: %w", err)
		}

		fmt.Printf("✓ Block %s deleted\n", blockID)
		return nil
	},
}

func toggleBlockCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [block-id]",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blockID := args[0]
			if err := validateEntityID(blockID, "block"); err != nil {
				return err
			}

			c, err := app()
			if err != nil {
				return err
			}
			if err := c.Blocks.SetBlockEnabled(NewContext(), blockID, enabled); err != nil {
				return fmt.Errorf("failed to %s block: %w", use, err)
			}

			fmt.Printf("✓ Block %s %sd\n", blockID, use)
			return nil
		},
	}
}

func describeTarget(t escalation.Target) string {
	switch t.Type {
	case escalation.TargetSquad:
		return "squad " + t.SquadID
	case escalation.TargetRole:
		return "role " + t.Role
	}
	return t.Type
}

func describeRoute(s escalation.Step) string {
	switch s.RouteType {
	case escalation.RouteRole:
		return "role " + s.RouteRole
	case escalation.RouteUser:
		return "user " + s.RouteUserID
	}
	return s.RouteType
}

func printBlock(b *primary.EscalationBlock) {
	fmt.Printf("Block: %s\n", b.ID)
	fmt.Printf("Name: %s\n", b.Name)
	fmt.Printf("Project: %s\n", b.ProjectID)
	if b.Description != "" {
		fmt.Printf("Description: %s\n", b.Description)
	}
	fmt.Printf("Trigger: %s\n", b.TriggerType)
	switch b.TriggerType {
	case escalation.TriggerDeadlineRisk:
		fmt.Printf("Warning Window: %d days\n", b.DeadlineWarningDays)
	case escalation.TriggerOutputBelowThreshold:
		fmt.Printf("Threshold: %d completed in %d days\n", b.OutputThreshold, b.OutputPeriodDays)
	}
	fmt.Printf("Target: %s\n", describeTarget(b.Target))
	fmt.Printf("State: %s\n", enabledLabel(b.Enabled))
	fmt.Printf("Created: %s\n", formatTime(b.CreatedAt))
	fmt.Printf("Updated: %s\n", formatTime(b.UpdatedAt))

	fmt.Println()
	fmt.Println("Steps:")
	for i, s := range b.Steps {
		fmt.Printf("  %d. +%dm → %s\n", i+1, s.DelayMinutes, describeRoute(s))
		if s.Message != "" {
			fmt.Printf("     %s\n", s.Message)
		}
	}
}

func init() {
	// block apply flags
	blockApplyCmd.Flags().StringP("file", "f", "", "YAML file with block definitions, - for stdin (required)")

	// block list flags
	blockListCmd.Flags().StringP("project", "p", "", "Project ID (required)")

	// Register subcommands
	blockCmd.AddCommand(blockApplyCmd)
	blockCmd.AddCommand(blockListCmd)
	blockCmd.AddCommand(blockShowCmd)
	blockCmd.AddCommand(blockDeleteCmd)
	blockCmd.AddCommand(toggleBlockCmd("enable", true))
	blockCmd.AddCommand(toggleBlockCmd("disable", false))
}

// BlockCmd returns the block command
func BlockCmd() *cobra.Command {
	return blockCmd
}
