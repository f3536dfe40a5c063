package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertSong writes a song according to the schema's conflict policy
func (t *Tx) InsertSong(ctx context.Context, s *Song) error {
	_, err := t.tx.ExecContext(ctx, t.schema.InsertSong,
		s.SongID, s.Title, s.ArtistID, s.Year, s.Duration)
	if err != nil {
		return fmt.Errorf("failed to insert song %s: %w", s.SongID, err)
	}
	return nil
}

// InsertArtist writes an artist according to the schema's conflict policy
func (t *Tx) InsertArtist(ctx context.Context, a *Artist) error {
	_, err := t.tx.ExecContext(ctx, t.schema.InsertArtist,
		a.ArtistID, a.Name, a.Location, a.Latitude, a.Longitude)
	if err != nil {
		return fmt.Errorf("failed to insert artist %s: %w", a.ArtistID, err)
	}
	return nil
}

// SelectSongAndArtist finds the song and artist ids matching a played title,
// artist name and duration. It returns nil, nil when nothing matches.
func (t *Tx) SelectSongAndArtist(ctx context.Context, title, artistName string, duration float64) (*SongMatch, error) {
	m := &SongMatch{}
	err := t.tx.QueryRowContext(ctx, t.schema.SelectSong, title, artistName, duration).
		Scan(&m.SongID, &m.ArtistID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up song %q by %q: %w", title, artistName, err)
	}

	return m, nil
}

// GetSong retrieves a song by id, or nil if absent
func (s *Store) GetSong(ctx context.Context, songID string) (*Song, error) {
	song := &Song{}
	err := s.db.QueryRowContext(ctx, s.schema.bind(`
		SELECT song_id, COALESCE(title, ''), artist_id, COALESCE(year, 0), COALESCE(duration, 0)
		FROM songs WHERE song_id = ?
	`), songID).Scan(&song.SongID, &song.Title, &song.ArtistID, &song.Year, &song.Duration)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get song: %w", err)
	}
	return song, nil
}

// GetArtist retrieves an artist by id, or nil if absent
func (s *Store) GetArtist(ctx context.Context, artistID string) (*Artist, error) {
	a := &Artist{}
	err := s.db.QueryRowContext(ctx, s.schema.bind(`
		SELECT artist_id, COALESCE(name, ''), location, latitude, longitude
		FROM artists WHERE artist_id = ?
	`), artistID).Scan(&a.ArtistID, &a.Name, &a.Location, &a.Latitude, &a.Longitude)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artist: %w", err)
	}
	return a, nil
}

// LookupSong runs the catalog lookup outside of a load
func (s *Store) LookupSong(ctx context.Context, title, artistName string, duration float64) (*SongMatch, error) {
	var match *SongMatch
	err := s.Transaction(ctx, func(tx *Tx) error {
		var err error
		match, err = tx.SelectSongAndArtist(ctx, title, artistName, duration)
		return err
	})
	return match, err
}
