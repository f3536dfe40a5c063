package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/sparkify-etl/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()

	schema, err := store.NewSchema(store.DialectSQLite, store.PolicyKeepFirst, false)
	require.NoError(t, err)
	db, err := store.Open(context.Background(), store.Config{
		Schema: schema,
		Path:   filepath.Join(t.TempDir(), "sparkify.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestData(t *testing.T, db *store.Store) {
	t.Helper()

	ctx := context.Background()
	start := time.Date(2018, 11, 15, 0, 30, 26, 0, time.UTC)

	err := db.Transaction(ctx, func(tx *store.Tx) error {
		if err := tx.InsertArtist(ctx, &store.Artist{ArtistID: "AR1", Name: "Elena"}); err != nil {
			return err
		}
		if err := tx.InsertSong(ctx, &store.Song{SongID: "SO1", Title: "Setanta matins", ArtistID: "AR1", Year: 0, Duration: 269.58}); err != nil {
			return err
		}
		for _, u := range []*store.User{
			{UserID: 10, Level: "free"},
			{UserID: 80, Level: "paid"},
		} {
			if err := tx.UpsertUser(ctx, u); err != nil {
				return err
			}
		}
		plays := []*store.Songplay{
			{StartTime: start, UserID: 80, Level: "paid", SessionID: 1},
			{StartTime: start.Add(time.Minute), UserID: 80, Level: "paid", SessionID: 1},
			{StartTime: start.Add(2 * time.Minute), UserID: 10, Level: "free", SessionID: 2},
		}
		plays[0].SongID.String, plays[0].SongID.Valid = "SO1", true
		plays[0].ArtistID.String, plays[0].ArtistID.Valid = "AR1", true
		for _, p := range plays {
			if err := tx.InsertSongplay(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestGenerateSummaryReport(t *testing.T) {
	db := openStore(t)
	setupTestData(t, db)

	report, err := GenerateSummaryReport(context.Background(), db, "")
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.RowCounts[store.TableSongplays])
	assert.Equal(t, int64(2), report.RowCounts[store.TableUsers])
	assert.Equal(t, int64(1), report.RowCounts[store.TableSongs])
	assert.Equal(t, int64(2), report.UnmatchedSongplays)
	assert.Equal(t, []store.LevelCount{{Level: "paid", Plays: 2}, {Level: "free", Plays: 1}}, report.PlaysByLevel)
	require.NotEmpty(t, report.TopUsers)
	assert.Equal(t, int64(80), report.TopUsers[0].UserID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestGenerateSummaryReportReadsEventLog(t *testing.T) {
	db := openStore(t)

	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	require.NoError(t, err)
	require.NoError(t, logger.LogUnmatched("/a.json", "Sehr kosmisch", "Harmonia", 655.77))
	require.NoError(t, logger.LogUnmatched("/a.json", "Sehr kosmisch", "Harmonia", 655.77))
	require.NoError(t, logger.LogUnmatched("/b.json", "Mercy", "Duffy", 219.9))
	require.NoError(t, logger.LogError("/c.json", errors.New("line 1: malformed record")))
	require.NoError(t, logger.Close())

	report, err := GenerateSummaryReport(context.Background(), db, logger.Path())
	require.NoError(t, err)

	assert.Equal(t, []UnmatchedSong{
		{Song: "Sehr kosmisch", Artist: "Harmonia", Plays: 2},
		{Song: "Mercy", Artist: "Duffy", Plays: 1},
	}, report.TopUnmatched)
	assert.Equal(t, []string{"/c.json: line 1: malformed record"}, report.Errors)
}

func TestGenerateSummaryReportToleratesMissingEventLog(t *testing.T) {
	db := openStore(t)

	report, err := GenerateSummaryReport(context.Background(), db, filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, report.TopUnmatched)
}

func TestWriteMarkdownReport(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt: time.Now(),
		RowCounts: map[string]int64{
			store.TableUsers:     96,
			store.TableArtists:   69,
			store.TableTime:      6813,
			store.TableSongs:     71,
			store.TableSongplays: 6820,
		},
		UnmatchedSongplays: 6819,
		PlaysByLevel:       []store.LevelCount{{Level: "paid", Plays: 5591}, {Level: "free", Plays: 1229}},
		TopUsers:           []store.UserPlays{{UserID: 49, FirstName: "Chloe", LastName: "Cuevas", Level: "paid", Plays: 689}},
		FilesProcessed:     101,
		BytesRead:          1536,
		LoadDuration:       2 * time.Second,
		TopUnmatched:       []UnmatchedSong{{Song: "Either|Or", Artist: "Band", Plays: 3}},
		Errors:             []string{"/data/x.json: boom"},
		SongData:           "data/song_data",
		LogData:            "data/log_data",
		Database:           "sparkify.db",
		EventLogPath:       "artifacts/events.jsonl",
	}

	require.NoError(t, WriteMarkdownReport(report, outputPath))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	md := string(content)

	for _, want := range []string{
		"# Sparkify ETL - Summary Report",
		"**Database:** `sparkify.db`",
		"| songplays | 6,820 |",
		"| time | 6,813 |",
		"| Files Processed | 101 |",
		"| Bytes Read | 1.5 kB |",
		"| Matched to catalog | 1 |",
		"| Level paid | 5,591 |",
		"| 49 | Chloe Cuevas | paid | 689 |",
		`| 3 | Band | Either\|Or |`,
		"- `/data/x.json: boom`",
	} {
		assert.Contains(t, md, want)
	}
}

func TestWriteMarkdownReportOmitsEmptySections(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "summary.md")
	report := &SummaryReport{GeneratedAt: time.Now(), RowCounts: map[string]int64{}}

	require.NoError(t, WriteMarkdownReport(report, outputPath))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	md := string(content)

	assert.Contains(t, md, "| users | 0 |")
	for _, absent := range []string{"## Load", "## Songplays", "## Most Active Users", "## Errors"} {
		assert.False(t, strings.Contains(md, absent), "unexpected section %s", absent)
	}
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "/short", truncatePath("/short", 80))

	long := "/" + strings.Repeat("a", 100) + "/file.json"
	got := truncatePath(long, 40)
	assert.Contains(t, got, "...")
	assert.True(t, strings.HasSuffix(got, "file.json"))
	assert.Less(t, len(got), len(long))
}
