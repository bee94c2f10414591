package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/pulse/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the container runs pending migrations.
		c, err := app()
		if err != nil {
			return err
		}
		v, err := db.CurrentVersion(NewContext(), c.DB)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		fmt.Printf("✓ Database %s at schema version %d\n", c.Config.Database.Path, v)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo projects, members and work items",
	Long: `Load a small demo project (a team with a reporting line, two squads and
work items due around now) so blocks and blockers can be tried out locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app()
		if err != nil {
			return err
		}
		if err := db.SeedFixtures(NewContext(), c.DB, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
		fmt.Println("✓ Demo data loaded")
		return nil
	},
}

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return migrateCmd
}

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	return seedCmd
}
