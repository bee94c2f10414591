package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/ports/primary"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a detector pass now",
	Long:  "Run one deadline-risk or output-threshold pass immediately instead of waiting for the next scheduled tick",
}

type scanPass func(primary.DetectorService, context.Context) (*primary.ScanReport, error)

func scanRunCmd(use, short string, pass scanPass) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app()
			if err != nil {
				return err
			}
			report, err := pass(c.Detectors, NewContext())
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			printScanReport(report)
			return nil
		},
	}
}

func printScanReport(r *primary.ScanReport) {
	fmt.Printf("✓ %s pass complete\n", r.Trigger)
	fmt.Printf("  Blocks:     %d\n", r.Blocks)
	fmt.Printf("  Candidates: %d\n", r.Candidates)
	fmt.Printf("  Created:    %d\n", r.Created)
	fmt.Printf("  Running:    %d\n", r.Duplicates)
	fmt.Printf("  Resolved:   %d\n", r.Resolved)
	if r.Errors > 0 {
		fmt.Printf("  ⚠️  Errors:  %d (see logs)\n", r.Errors)
	}
}

func init() {
	scanCmd.AddCommand(scanRunCmd("deadline", "Scan for work at deadline risk",
		primary.DetectorService.ScanDeadlineRisk))
	scanCmd.AddCommand(scanRunCmd("output", "Scan for members below their output threshold",
		primary.DetectorService.ScanOutputThreshold))
}

// ScanCmd returns the scan command
func ScanCmd() *cobra.Command {
	return scanCmd
}
