package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monorkin/airgradient-dashboard/internal/database"
	"github.com/monorkin/airgradient-dashboard/internal/globals"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect and manage the database schema",
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	Run: func(cmd *cobra.Command, args []string) {
		initializeApp()
		fmt.Printf("Schema version: %d\n", database.CurrentSchemaVersion(database.DB))
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the newest migrations",
	Long: `Revert the newest applied migrations, one per step.

Pending migrations are applied again the next time any other command runs.`,
	Run: runMigrateDown,
}

func runMigrateDown(cmd *cobra.Command, args []string) {
	initializeApp()

	for i := 0; i < migrateSteps; i++ {
		before := database.CurrentSchemaVersion(database.DB)
		if before == 0 {
			break
		}

		if err := database.Rollback(database.DB); err != nil {
			fail(fmt.Sprintf("Failed to revert migration %d", before), err)
		}
		globals.Logger.Info("Migration reverted", "version", before)
	}

	fmt.Printf("Schema version: %d\n", database.CurrentSchemaVersion(database.DB))
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to revert")
}
