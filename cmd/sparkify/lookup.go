package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <title> <artist> <duration>",
	Short: "Find the song and artist IDs a play would be matched to",
	Long: `Run the songplay catalog lookup by hand. Title and artist name must match
exactly, and duration must equal the stored song duration.

Prints "<song_id> <artist_id>", or exits with an error when there is no match.`,
	Args: cobra.ExactArgs(3),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging()

	duration, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("duration %q is not a number: %w", args[2], util.ErrInvalidConfig)
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

	match, err := db.LookupSong(ctx, args[0], args[1], duration)
	if err != nil {
		return err
	}
	if match == nil {
		return fmt.Errorf("no song %q by %q with duration %g: %w", args[0], args[1], duration, util.ErrNotFound)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", match.SongID, match.ArtistID)
	return nil
}
