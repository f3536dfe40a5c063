package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertTime writes a time row; an existing start_time is left untouched
func (t *Tx) InsertTime(ctx context.Context, r *TimeRow) error {
	_, err := t.tx.ExecContext(ctx, t.schema.InsertTime,
		r.StartTime, r.Hour, r.Day, r.Week, r.Month, r.Year, r.Weekday)
	if err != nil {
		return fmt.Errorf("failed to insert time %s: %w", r.StartTime.Format(time.RFC3339Nano), err)
	}
	return nil
}

// UpsertUser writes a user; on conflict the level (or every field under
// PolicyOverwrite) takes the latest value
func (t *Tx) UpsertUser(ctx context.Context, u *User) error {
	_, err := t.tx.ExecContext(ctx, t.schema.UpsertUser,
		u.UserID, u.FirstName, u.LastName, u.Gender, u.Level)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", u.UserID, err)
	}
	return nil
}

// InsertSongplay always inserts a new songplay and sets its generated ID
func (t *Tx) InsertSongplay(ctx context.Context, p *Songplay) error {
	err := t.tx.QueryRowContext(ctx, t.schema.InsertSongplay,
		p.StartTime, p.UserID, p.Level, p.SongID, p.ArtistID,
		p.SessionID, p.Location, p.UserAgent,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert songplay for user %d: %w", p.UserID, err)
	}
	return nil
}

// GetUser retrieves a user by id, or nil if absent
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	u := &User{}
	err := s.db.QueryRowContext(ctx, s.schema.bind(`
		SELECT user_id, first_name, last_name, gender, COALESCE(level, '')
		FROM users WHERE user_id = ?
	`), userID).Scan(&u.UserID, &u.FirstName, &u.LastName, &u.Gender, &u.Level)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetTimeRow retrieves the time row for a start time, or nil if absent
func (s *Store) GetTimeRow(ctx context.Context, start time.Time) (*TimeRow, error) {
	r := &TimeRow{}
	err := s.db.QueryRowContext(ctx, s.schema.bind(`
		SELECT start_time, hour, day, week, month, year, weekday
		FROM time WHERE start_time = ?
	`), start.UTC()).Scan(&r.StartTime, &r.Hour, &r.Day, &r.Week, &r.Month, &r.Year, &r.Weekday)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time row: %w", err)
	}
	return r, nil
}

// GetSongplaysBySong returns every songplay that resolved to songID, ordered by id
func (s *Store) GetSongplaysBySong(ctx context.Context, songID string) ([]*Songplay, error) {
	rows, err := s.db.QueryContext(ctx, s.schema.bind(`
		SELECT songplay_id, start_time, user_id, COALESCE(level, ''), song_id, artist_id,
		       COALESCE(session_id, 0), location, user_agent
		FROM songplays WHERE song_id = ?
		ORDER BY songplay_id
	`), songID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songplays: %w", err)
	}
	defer rows.Close()

	var plays []*Songplay
	for rows.Next() {
		p := &Songplay{}
		if err := rows.Scan(&p.ID, &p.StartTime, &p.UserID, &p.Level, &p.SongID, &p.ArtistID,
			&p.SessionID, &p.Location, &p.UserAgent); err != nil {
			return nil, fmt.Errorf("failed to scan songplay: %w", err)
		}
		plays = append(plays, p)
	}

	return plays, rows.Err()
}
