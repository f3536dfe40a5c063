package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/sparkify-etl/internal/report"
	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the database and event logs",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Row counts for every table
- Matched and unmatched songplays
- Songplays by subscription level
- The most active users
- Unmatched songs and errors from an event log (with --event-log)

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	// Report-specific flags
	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (optional)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging()

	cfg, err := storeConfig()
	if err != nil {
		return err
	}

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", describeDB(cfg))

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	eventLogPath, _ := cmd.Flags().GetString("event-log")

	summaryReport, err := report.GenerateSummaryReport(ctx, db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summaryReport.Database = describeDB(cfg)

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(GetConfigString("artifacts", "artifacts"), "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summaryReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	for _, table := range store.Tables {
		util.InfoLog("  %s: %s", table, util.FormatCount(summaryReport.RowCounts[table]))
	}
	if summaryReport.UnmatchedSongplays > 0 {
		util.InfoLog("  Unmatched songplays: %s", util.FormatCount(summaryReport.UnmatchedSongplays))
	}

	return nil
}
