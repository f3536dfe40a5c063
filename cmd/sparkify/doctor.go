package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/sparkify-etl/internal/source"
	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure sparkify can load data.

This command checks:
- SQLite version (built-in driver)
- Database connectivity and integrity
- Song and log data roots are readable and hold data files
- The artifacts directory is writable
- Disk space next to the SQLite database

Use this command to troubleshoot issues before running a load.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	setupLogging()

	util.InfoLog("=== Sparkify Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}

	cfg, err := storeConfig()
	if err != nil {
		results = append(results, checkResult{name: "Configuration", error: true, message: err.Error()})
	} else {
		results = append(results, checkDatabase(ctx, cfg))
		if cfg.Schema.Dialect == store.DialectSQLite {
			results = append(results,
				checkDatabaseFilesystem(filepath.Dir(cfg.Path)),
				checkDiskSpace(filepath.Dir(cfg.Path), "database"),
			)
		}
	}

	src, err := source.New(sourceOptions())
	if err != nil {
		results = append(results, checkResult{name: "Data files", error: true, message: err.Error()})
	} else {
		results = append(results,
			checkDataRoot(ctx, src, "Song data", viper.GetString("song-data")),
			checkDataRoot(ctx, src, "Log data", viper.GetString("log-data")),
		)
	}

	results = append(results, checkArtifactsDirectory(GetConfigString("artifacts", "artifacts")))

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before loading.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! Ready to load.")
	}

	return nil
}

// checkSQLite verifies the embedded SQLite driver works
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies the configured database can be opened and reports row counts
func checkDatabase(ctx context.Context, cfg store.Config) checkResult {
	desc := describeDB(cfg)

	var size int64
	if cfg.Schema.Dialect == store.DialectSQLite {
		info, err := os.Stat(cfg.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return checkResult{
					name:    "Database",
					message: fmt.Sprintf("%s (will be created on first load)", desc),
				}
			}
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("cannot access %s: %v", desc, err),
			}
		}
		if !info.Mode().IsRegular() {
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("%s is not a regular file", desc),
			}
		}
		size = info.Size()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", desc, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: err.Error(),
		}
	}

	version, err := db.ServerVersion(ctx)
	if err != nil {
		version = "unknown"
	}
	songplays, _ := db.CountRows(ctx, store.TableSongplays)
	songs, _ := db.CountRows(ctx, store.TableSongs)

	msg := fmt.Sprintf("%s (%s %s, %s songs, %s songplays", desc, cfg.Schema.Dialect, version,
		util.FormatCount(songs), util.FormatCount(songplays))
	if size > 0 {
		msg += ", " + util.FormatBytes(size)
	}
	return checkResult{
		name:    "Database",
		message: msg + ")",
	}
}

// checkDataRoot verifies a data tree can be listed and holds at least one data file
func checkDataRoot(ctx context.Context, src source.Source, label, root string) checkResult {
	if root == "" {
		return checkResult{
			name:    label,
			error:   true,
			message: "no root configured",
		}
	}

	files, err := src.Find(ctx, root)
	if err != nil {
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", root, err),
		}
	}
	if len(files) == 0 {
		return checkResult{
			name:    label,
			warning: true,
			message: fmt.Sprintf("%s holds no data files", root),
		}
	}

	return checkResult{
		name:    label,
		message: fmt.Sprintf("%s (%s files)", root, util.FormatCount(int64(len(files)))),
	}
}

// checkArtifactsDirectory verifies the event log directory is writable
func checkArtifactsDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    "Artifacts directory",
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    "Artifacts directory",
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	f, err := os.CreateTemp(path, ".sparkify_write_test")
	if err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(f.Name())

	return checkResult{
		name:    "Artifacts directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDatabaseFilesystem warns when the SQLite directory is on a network
// mount, where WAL journaling is unreliable
func checkDatabaseFilesystem(dir string) checkResult {
	info, err := util.DetectMount(dir)
	if err != nil {
		return checkResult{
			name:    "Database filesystem",
			warning: true,
			message: fmt.Sprintf("cannot determine filesystem: %v", err),
		}
	}
	if info.FSType == "" {
		return checkResult{
			name:    "Database filesystem",
			message: "unknown (no /proc/mounts)",
		}
	}
	if info.Network {
		return checkResult{
			name:    "Database filesystem",
			warning: true,
			message: fmt.Sprintf("%s is on %s (%s); keep the SQLite file on local disk", dir, info.MountPoint, info.FSType),
		}
	}

	return checkResult{
		name:    "Database filesystem",
		message: fmt.Sprintf("%s (local)", info.FSType),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)

	// Warn below 512 MB
	warning := availBytes < 512*1024*1024
	msg := fmt.Sprintf("%s available", util.FormatBytes(int64(availBytes)))
	if warning {
		msg += " (low space!)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: msg,
	}
}
