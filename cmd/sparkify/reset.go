package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate all tables",
	Long: `Drop the songplays, songs, time, artists and users tables and create
them again, empty. Requires --yes.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("yes", false, "confirm that all loaded rows should be deleted")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging()

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("reset deletes every loaded row; pass --yes to continue")
	}

	cfg, err := storeConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	util.WarnLog("Dropping all tables in %s", describeDB(cfg))
	if err := db.Reset(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	util.SuccessLog("Tables recreated: %v", store.Tables)
	return nil
}
