package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

// SummaryReport represents a complete summary report
type SummaryReport struct {
	GeneratedAt time.Time

	// Table statistics
	RowCounts          map[string]int64
	UnmatchedSongplays int64
	PlaysByLevel       []store.LevelCount
	TopUsers           []store.UserPlays

	// Load statistics, zero when the report is generated outside a load
	FilesProcessed int
	BytesRead      int64
	LoadDuration   time.Duration

	// Details from the event log
	TopUnmatched []UnmatchedSong
	Errors       []string

	// Metadata
	SongData     string
	LogData      string
	Database     string
	EventLogPath string
}

// UnmatchedSong is a (song, artist) pair that never resolved against the catalog
type UnmatchedSong struct {
	Song   string
	Artist string
	Plays  int
}

// GenerateSummaryReport creates a summary report from the database and, when
// eventLogPath is set, the JSONL event log of the run
func GenerateSummaryReport(ctx context.Context, db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		TopUnmatched: make([]UnmatchedSong, 0),
		Errors:       make([]string, 0),
	}

	counts, err := db.CountAllRows(ctx)
	if err != nil {
		return nil, err
	}
	report.RowCounts = counts

	if report.UnmatchedSongplays, err = db.CountUnmatchedSongplays(ctx); err != nil {
		return nil, err
	}
	if report.PlaysByLevel, err = db.SongplaysByLevel(ctx); err != nil {
		return nil, err
	}
	if report.TopUsers, err = db.TopUsers(ctx, 10); err != nil {
		return nil, err
	}

	if eventLogPath != "" {
		events, err := ReadEvents(eventLogPath)
		if err != nil {
			util.WarnLog("Could not read event log %s: %v", eventLogPath, err)
		} else {
			report.TopUnmatched = gatherUnmatched(events, 20)
			for _, e := range events {
				if e.Event == EventError {
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", e.Path, e.Error))
				}
			}
		}
	}

	return report, nil
}

// ReadEvents decodes every line of a JSONL event log
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

func gatherUnmatched(events []Event, limit int) []UnmatchedSong {
	type key struct{ song, artist string }
	counts := make(map[key]int)
	for _, e := range events {
		if e.Event != EventUnmatched {
			continue
		}
		counts[key{e.Extra["song"], e.Extra["artist"]}]++
	}

	out := make([]UnmatchedSong, 0, len(counts))
	for k, n := range counts {
		out = append(out, UnmatchedSong{Song: k.song, Artist: k.artist, Plays: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plays != out[j].Plays {
			return out[i].Plays > out[j].Plays
		}
		if out[i].Artist != out[j].Artist {
			return out[i].Artist < out[j].Artist
		}
		return out[i].Song < out[j].Song
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Sparkify ETL - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.Database != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.Database))
	}
	if report.SongData != "" {
		md.WriteString(fmt.Sprintf("**Song data:** `%s`\n\n", report.SongData))
	}
	if report.LogData != "" {
		md.WriteString(fmt.Sprintf("**Log data:** `%s`\n\n", report.LogData))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Tables
	md.WriteString("## Tables\n\n")
	md.WriteString("| Table | Rows |\n")
	md.WriteString("|-------|------|\n")
	for _, table := range store.Tables {
		md.WriteString(fmt.Sprintf("| %s | %s |\n", table, util.FormatCount(report.RowCounts[table])))
	}
	md.WriteString("\n")

	// Load
	if report.FilesProcessed > 0 {
		md.WriteString("## Load\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Files Processed | %s |\n", util.FormatCount(int64(report.FilesProcessed))))
		md.WriteString(fmt.Sprintf("| Bytes Read | %s |\n", util.FormatBytes(report.BytesRead)))
		if report.LoadDuration > 0 {
			md.WriteString(fmt.Sprintf("| Load Time | %s |\n", report.LoadDuration.Round(time.Millisecond)))
		}
		md.WriteString("\n")
	}

	// Songplays
	if songplays := report.RowCounts[store.TableSongplays]; songplays > 0 {
		md.WriteString("## Songplays\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Total | %s |\n", util.FormatCount(songplays)))
		md.WriteString(fmt.Sprintf("| Matched to catalog | %s |\n", util.FormatCount(songplays-report.UnmatchedSongplays)))
		md.WriteString(fmt.Sprintf("| Unmatched | %s |\n", util.FormatCount(report.UnmatchedSongplays)))
		for _, lc := range report.PlaysByLevel {
			level := lc.Level
			if level == "" {
				level = "(none)"
			}
			md.WriteString(fmt.Sprintf("| Level %s | %s |\n", level, util.FormatCount(lc.Plays)))
		}
		md.WriteString("\n")
	}

	// Users
	if len(report.TopUsers) > 0 {
		md.WriteString("## Most Active Users\n\n")
		md.WriteString("| User | Name | Level | Plays |\n")
		md.WriteString("|------|------|-------|-------|\n")
		for _, u := range report.TopUsers {
			name := strings.TrimSpace(u.FirstName + " " + u.LastName)
			md.WriteString(fmt.Sprintf("| %d | %s | %s | %d |\n", u.UserID, name, u.Level, u.Plays))
		}
		md.WriteString("\n")
	}

	// Unmatched plays
	if len(report.TopUnmatched) > 0 {
		md.WriteString("## Unmatched Songs (Top 20)\n\n")
		md.WriteString("| Plays | Artist | Song |\n")
		md.WriteString("|-------|--------|------|\n")
		for _, u := range report.TopUnmatched {
			md.WriteString(fmt.Sprintf("| %d | %s | %s |\n", u.Plays, escapeCell(u.Artist), escapeCell(u.Song)))
		}
		md.WriteString("\n")
	}

	// Errors
	if len(report.Errors) > 0 {
		md.WriteString("## Errors\n\n")
		for _, e := range report.Errors {
			md.WriteString(fmt.Sprintf("- `%s`\n", truncatePath(e, 160)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by sparkify*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
