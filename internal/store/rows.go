package store

import (
	"database/sql"
	"time"
)

// Song is one row of the songs table
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// Artist is one row of the artists table
type Artist struct {
	ArtistID  string
	Name      string
	Location  sql.NullString
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
}

// User is one row of the users table
type User struct {
	UserID    int64
	FirstName sql.NullString
	LastName  sql.NullString
	Gender    sql.NullString
	Level     string
}

// TimeRow decomposes a play's start time into calendar fields
type TimeRow struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int // ISO-8601 week number
	Month     int
	Year      int
	Weekday   int // Monday=0 ... Sunday=6
}

// Songplay is one NextSong event. SongID and ArtistID are null when the
// played song is not in the catalog.
type Songplay struct {
	ID        int64
	StartTime time.Time
	UserID    int64
	Level     string
	SongID    sql.NullString
	ArtistID  sql.NullString
	SessionID int64
	Location  sql.NullString
	UserAgent sql.NullString
}

// SongMatch is the result of a catalog lookup
type SongMatch struct {
	SongID   string
	ArtistID string
}
