package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/franz/sparkify-etl/internal/util"
)

// Dialect selects the SQL flavour and database/sql driver
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Policy is the conflict policy applied to songs, artists and users.
// Time rows are always insert-or-ignore and songplays are always inserted.
type Policy string

const (
	// PolicyKeepFirst keeps the first-seen song/artist and updates only a user's level
	PolicyKeepFirst Policy = "keep-first"
	// PolicyOverwrite overwrites every non-key column of songs, artists and users
	PolicyOverwrite Policy = "overwrite"
)

// Table names in creation order
const (
	TableUsers     = "users"
	TableArtists   = "artists"
	TableTime      = "time"
	TableSongs     = "songs"
	TableSongplays = "songplays"
)

// Tables lists every table in the order it must be created.
// Dropping uses the reverse order.
var Tables = []string{TableUsers, TableArtists, TableTime, TableSongs, TableSongplays}

// ParseDialect converts a config value into a Dialect
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("database driver %q: %w", s, util.ErrUnsupported)
}

// ParsePolicy converts a config value into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyKeepFirst), "ignore":
		return PolicyKeepFirst, nil
	case string(PolicyOverwrite):
		return PolicyOverwrite, nil
	}
	return "", fmt.Errorf("conflict policy %q: %w", s, util.ErrInvalidConfig)
}

// Schema holds every DDL and DML statement the gateway runs, rendered
// for one dialect, conflict policy and strictness.
type Schema struct {
	Dialect Dialect
	Policy  Policy
	Strict  bool // foreign keys between songplays, songs, artists, users and time

	Create []string
	Drop   []string

	InsertSong     string
	InsertArtist   string
	UpsertUser     string
	InsertTime     string
	InsertSongplay string
	SelectSong     string
}

// NewSchema renders the statements for the given dialect and policy
func NewSchema(dialect Dialect, policy Policy, strict bool) (*Schema, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("dialect %q: %w", dialect, util.ErrUnsupported)
	}
	if policy != PolicyKeepFirst && policy != PolicyOverwrite {
		return nil, fmt.Errorf("policy %q: %w", policy, util.ErrInvalidConfig)
	}

	s := &Schema{Dialect: dialect, Policy: policy, Strict: strict}

	s.Create = []string{
		userTableCreate,
		artistTableCreate,
		timeTableCreate,
		s.songTableCreate(),
		s.songplayTableCreate(),
	}
	for i := len(Tables) - 1; i >= 0; i-- {
		s.Drop = append(s.Drop, "DROP TABLE IF EXISTS "+Tables[i])
	}

	s.InsertSong = s.bind(`
		INSERT INTO songs (song_id, title, artist_id, year, duration)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (song_id) ` + s.onConflict(
		"title = excluded.title, artist_id = excluded.artist_id, year = excluded.year, duration = excluded.duration",
		""))

	s.InsertArtist = s.bind(`
		INSERT INTO artists (artist_id, name, location, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (artist_id) ` + s.onConflict(
		"name = excluded.name, location = excluded.location, latitude = excluded.latitude, longitude = excluded.longitude",
		""))

	s.UpsertUser = s.bind(`
		INSERT INTO users (user_id, first_name, last_name, gender, level)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) ` + s.onConflict(
		"first_name = excluded.first_name, last_name = excluded.last_name, gender = excluded.gender, level = excluded.level",
		"level = excluded.level"))

	s.InsertTime = s.bind(`
		INSERT INTO time (start_time, hour, day, week, month, year, weekday)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (start_time) DO NOTHING`)

	s.InsertSongplay = s.bind(`
		INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING songplay_id`)

	s.SelectSong = s.bind(`
		SELECT songs.song_id, artists.artist_id
		FROM songs
		JOIN artists ON songs.artist_id = artists.artist_id
		WHERE songs.title = ?
		  AND artists.name = ?
		  AND songs.duration = ?
		ORDER BY songs.song_id
		LIMIT 1`)

	return s, nil
}

// onConflict returns the conflict action for songs, artists and users.
// keepFirst is the SET list used under PolicyKeepFirst; empty means DO NOTHING.
func (s *Schema) onConflict(overwrite, keepFirst string) string {
	set := keepFirst
	if s.Policy == PolicyOverwrite {
		set = overwrite
	}
	if set == "" {
		return "DO NOTHING"
	}
	return "DO UPDATE SET " + set
}

// bind rewrites ? placeholders into the dialect's placeholder syntax
func (s *Schema) bind(query string) string {
	query = strings.TrimSpace(query)
	if s.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Schema) songTableCreate() string {
	fk := ""
	if s.Strict {
		fk = ",\n  FOREIGN KEY (artist_id) REFERENCES artists (artist_id)"
	}
	return `CREATE TABLE IF NOT EXISTS songs (
  song_id VARCHAR PRIMARY KEY,
  title VARCHAR,
  artist_id VARCHAR NOT NULL,
  year INT,
  duration FLOAT` + fk + `
)`
}

// songplay song_id/artist_id stay nullable: plays of songs missing from
// the catalog are still recorded.
func (s *Schema) songplayTableCreate() string {
	id := "songplay_id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.Dialect == DialectPostgres {
		id = "songplay_id SERIAL PRIMARY KEY"
	}
	fk := ""
	if s.Strict {
		fk = `,
  FOREIGN KEY (start_time) REFERENCES time (start_time),
  FOREIGN KEY (user_id) REFERENCES users (user_id),
  FOREIGN KEY (song_id) REFERENCES songs (song_id),
  FOREIGN KEY (artist_id) REFERENCES artists (artist_id)`
	}
	return `CREATE TABLE IF NOT EXISTS songplays (
  ` + id + `,
  start_time TIMESTAMP NOT NULL,
  user_id INT NOT NULL,
  level VARCHAR,
  song_id VARCHAR,
  artist_id VARCHAR,
  session_id INT,
  location VARCHAR,
  user_agent VARCHAR` + fk + `
)`
}

const userTableCreate = `CREATE TABLE IF NOT EXISTS users (
  user_id INT PRIMARY KEY,
  first_name VARCHAR,
  last_name VARCHAR,
  gender CHAR(1),
  level VARCHAR
)`

const artistTableCreate = `CREATE TABLE IF NOT EXISTS artists (
  artist_id VARCHAR PRIMARY KEY,
  name VARCHAR,
  location VARCHAR,
  latitude FLOAT,
  longitude FLOAT
)`

const timeTableCreate = `CREATE TABLE IF NOT EXISTS time (
  start_time TIMESTAMP PRIMARY KEY,
  hour INT,
  day INT,
  week INT,
  month INT,
  year INT,
  weekday INT
)`
