package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/sparkify-etl/internal/source"
	"github.com/franz/sparkify-etl/internal/store"
)

func sqliteConfig(t *testing.T, path string) store.Config {
	t.Helper()
	schema, err := store.NewSchema(store.DialectSQLite, store.PolicyKeepFirst, false)
	require.NoError(t, err)
	return store.Config{Schema: schema, Path: path}
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	assert.False(t, result.error, result.message)
	assert.Contains(t, result.message, "version")
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(context.Background(), sqliteConfig(t, dbPath))

	assert.False(t, result.error, result.message)
	assert.Contains(t, result.message, "will be created")

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "doctor should not create the database")
}

func TestCheckDatabase_Existing(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t, filepath.Join(t.TempDir(), "test.db"))

	db, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	err = db.Transaction(ctx, func(tx *store.Tx) error {
		if err := tx.InsertArtist(ctx, &store.Artist{ArtistID: "A1", Name: "N"}); err != nil {
			return err
		}
		return tx.InsertSong(ctx, &store.Song{SongID: "S1", Title: "T", ArtistID: "A1", Year: 2000, Duration: 180})
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	result := checkDatabase(ctx, cfg)

	assert.False(t, result.error, result.message)
	assert.Contains(t, result.message, "1 songs")
	assert.Contains(t, result.message, "0 songplays")
}

func TestCheckDatabase_Directory(t *testing.T) {
	result := checkDatabase(context.Background(), sqliteConfig(t, t.TempDir()))

	assert.True(t, result.error)
	assert.Contains(t, result.message, "not a regular file")
}

func TestCheckDataRoot(t *testing.T) {
	src, err := source.New(source.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "B"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "B", "TRABC.json"), []byte("{}"), 0644))

	result := checkDataRoot(ctx, src, "Song data", root)
	assert.False(t, result.error, result.message)
	assert.False(t, result.warning, result.message)
	assert.Contains(t, result.message, "(1 files)")

	result = checkDataRoot(ctx, src, "Log data", t.TempDir())
	assert.True(t, result.warning)
	assert.False(t, result.error)

	result = checkDataRoot(ctx, src, "Log data", filepath.Join(root, "missing"))
	assert.True(t, result.error)

	result = checkDataRoot(ctx, src, "Log data", "")
	assert.True(t, result.error)
}

func TestCheckArtifactsDirectory(t *testing.T) {
	created := filepath.Join(t.TempDir(), "artifacts")

	result := checkArtifactsDirectory(created)
	assert.False(t, result.error, result.message)
	assert.Contains(t, result.message, "created")

	result = checkArtifactsDirectory(created)
	assert.False(t, result.error, result.message)
	assert.Contains(t, result.message, "writable")

	entries, err := os.ReadDir(created)
	require.NoError(t, err)
	assert.Empty(t, entries, "write test file should be removed")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	result = checkArtifactsDirectory(file)
	assert.True(t, result.error)
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "database")

	assert.False(t, result.error)
	assert.True(t, strings.HasPrefix(result.name, "Disk space"))
	assert.NotEmpty(t, result.message)
}

func TestCheckDatabaseFilesystem(t *testing.T) {
	result := checkDatabaseFilesystem(t.TempDir())

	assert.False(t, result.error)
	assert.Equal(t, "Database filesystem", result.name)
	assert.NotEmpty(t, result.message)
}
