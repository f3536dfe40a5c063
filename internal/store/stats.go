package store

import (
	"context"
	"fmt"
	"slices"
)

// CountRows returns the number of rows in one of the schema's tables
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if !slices.Contains(Tables, table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// CountAllRows returns row counts keyed by table name
func (s *Store) CountAllRows(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		n, err := s.CountRows(ctx, table)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}

// CountUnmatchedSongplays returns how many songplays did not resolve to a catalog song
func (s *Store) CountUnmatchedSongplays(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM songplays WHERE song_id IS NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unmatched songplays: %w", err)
	}
	return count, nil
}

// LevelCount is the number of songplays recorded at one subscription level
type LevelCount struct {
	Level string
	Plays int64
}

// SongplaysByLevel groups songplays by subscription level, most plays first
func (s *Store) SongplaysByLevel(ctx context.Context) ([]LevelCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(level, ''), COUNT(*) AS plays
		FROM songplays
		GROUP BY level
		ORDER BY plays DESC, 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group songplays by level: %w", err)
	}
	defer rows.Close()

	var out []LevelCount
	for rows.Next() {
		var lc LevelCount
		if err := rows.Scan(&lc.Level, &lc.Plays); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// UserPlays is a user with their songplay count
type UserPlays struct {
	UserID    int64
	FirstName string
	LastName  string
	Level     string
	Plays     int64
}

// TopUsers returns the users with the most songplays
func (s *Store) TopUsers(ctx context.Context, limit int) ([]UserPlays, error) {
	rows, err := s.db.QueryContext(ctx, s.schema.bind(`
		SELECT u.user_id, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
		       COALESCE(u.level, ''), COUNT(*) AS plays
		FROM songplays sp
		JOIN users u ON u.user_id = sp.user_id
		GROUP BY u.user_id, u.first_name, u.last_name, u.level
		ORDER BY plays DESC, u.user_id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	var out []UserPlays
	for rows.Next() {
		var up UserPlays
		if err := rows.Scan(&up.UserID, &up.FirstName, &up.LastName, &up.Level, &up.Plays); err != nil {
			return nil, fmt.Errorf("failed to scan user plays: %w", err)
		}
		out = append(out, up)
	}
	return out, rows.Err()
}
