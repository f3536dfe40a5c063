package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/sparkify-etl/internal/etl"
	"github.com/franz/sparkify-etl/internal/report"
	"github.com/franz/sparkify-etl/internal/source"
	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the song and log trees into the database",
	Long: `Load every song metadata file and then every event log file.

Song files fill the songs and artists tables. Log files fill the time, users
and songplays tables; only NextSong events are loaded, and each play is
matched to the catalog by song title, artist name and duration.

Each file is committed on its own. The first failing file stops the load;
files committed before it stay in the database.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().Bool("normalize-unicode", false, "NFC-normalize song titles and artist names before storing and matching")
	loadCmd.Flags().Bool("report", false, "write a summary report after the load")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging()

	songData := viper.GetString("song-data")
	logData := viper.GetString("log-data")
	if songData == "" || logData == "" {
		return fmt.Errorf("both --song-data and --log-data are required: %w", util.ErrInvalidConfig)
	}

	cfg, err := storeConfig()
	if err != nil {
		return err
	}

	util.InfoLog("Opening database: %s", describeDB(cfg))
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	src, err := source.New(sourceOptions())
	if err != nil {
		return err
	}

	artifacts := GetConfigString("artifacts", "artifacts")
	logger, err := report.NewEventLogger(artifacts, eventLogLevel())
	if err != nil {
		return fmt.Errorf("failed to create event logger: %w", err)
	}
	defer logger.Close()
	util.DebugLog("Event log: %s (run %s)", logger.Path(), logger.RunID())

	driver := etl.New(&etl.Config{
		Store:     db,
		Source:    src,
		Normalize: viper.GetBool("normalize-unicode"),
		Logger:    logger,
	})

	lr, err := driver.LoadAll(ctx, songData, logData)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	total := lr.Total()
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Song files: %d", lr.Songs.FilesProcessed)
	util.InfoLog("  Log files: %d", lr.Logs.FilesProcessed)
	util.InfoLog("  Play events: %s", util.FormatCount(int64(lr.Logs.Plays)))
	util.InfoLog("  Songplays: %s", util.FormatCount(int64(total.Songplays)))
	if total.Unmatched > 0 {
		util.InfoLog("  Unmatched songplays: %s", util.FormatCount(int64(total.Unmatched)))
	}
	util.InfoLog("  Read: %s", util.FormatBytes(total.BytesRead))

	if writeReport, _ := cmd.Flags().GetBool("report"); writeReport {
		if err := logger.Close(); err != nil {
			return err
		}

		summary, err := report.GenerateSummaryReport(ctx, db, logger.Path())
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		summary.FilesProcessed = total.FilesProcessed
		summary.BytesRead = total.BytesRead
		summary.LoadDuration = total.Duration
		summary.SongData = songData
		summary.LogData = logData
		summary.Database = describeDB(cfg)

		outputPath := filepath.Join(artifacts, "reports", time.Now().Format("20060102-150405"), "summary.md")
		if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		util.InfoLog("Report saved to: %s", outputPath)
	}

	return nil
}
