package record

import (
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

// PageNextSong marks a play event; every other page is ignored by the loader
const PageNextSong = "NextSong"

// EventRecord is one line of an event log file
type EventRecord struct {
	Page      string   `json:"page"`
	TS        *int64   `json:"ts"` // epoch milliseconds
	UserID    FlexInt  `json:"userId"`
	FirstName *string  `json:"firstName"`
	LastName  *string  `json:"lastName"`
	Gender    *string  `json:"gender"`
	Level     *string  `json:"level"`
	Song      *string  `json:"song"`
	Artist    *string  `json:"artist"`
	Length    *float64 `json:"length"`
	SessionID FlexInt  `json:"sessionId"`
	Location  *string  `json:"location"`
	UserAgent *string  `json:"userAgent"`
}

// DecodeEvents reads every event record from r
func DecodeEvents(r io.Reader) ([]EventRecord, Stats, error) {
	return decodeLines[EventRecord](r)
}

// FilterPlays keeps NextSong events in file order
func FilterPlays(events []EventRecord) []EventRecord {
	plays := make([]EventRecord, 0, len(events))
	for _, e := range events {
		if e.IsPlay() {
			plays = append(plays, e)
		}
	}
	return plays
}

// IsPlay reports whether the event is a song play
func (e *EventRecord) IsPlay() bool {
	return e.Page == PageNextSong
}

// Validate checks the fields a play event needs to produce time, user and
// songplay rows
func (e *EventRecord) Validate() error {
	var missing []string
	if e.TS == nil {
		missing = append(missing, "ts")
	}
	if !e.UserID.Valid {
		missing = append(missing, "userId")
	}
	if e.Level == nil {
		missing = append(missing, "level")
	}
	if !e.SessionID.Valid {
		missing = append(missing, "sessionId")
	}
	if e.Song == nil {
		missing = append(missing, "song")
	}
	if e.Artist == nil {
		missing = append(missing, "artist")
	}
	if e.Length == nil {
		missing = append(missing, "length")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", util.ErrMalformedRecord, strings.Join(missing, ", "))
	}
	return nil
}

// NormalizeText rewrites the song title and artist name into Unicode NFC
func (e *EventRecord) NormalizeText() {
	nfc(e.Song)
	nfc(e.Artist)
}

// StartTime converts the epoch-millisecond timestamp to UTC
func (e *EventRecord) StartTime() time.Time {
	return time.UnixMilli(*e.TS).UTC()
}

// User projects the users row
func (e *EventRecord) User() *store.User {
	return &store.User{
		UserID:    e.UserID.Value,
		FirstName: nullString(e.FirstName),
		LastName:  nullString(e.LastName),
		Gender:    nullString(e.Gender),
		Level:     *e.Level,
	}
}

// Songplay projects the songplays row. A nil match leaves the song and
// artist references null.
func (e *EventRecord) Songplay(match *store.SongMatch) *store.Songplay {
	p := &store.Songplay{
		StartTime: e.StartTime(),
		UserID:    e.UserID.Value,
		Level:     *e.Level,
		SessionID: e.SessionID.Value,
		Location:  nullString(e.Location),
		UserAgent: nullString(e.UserAgent),
	}
	if match != nil {
		p.SongID = sql.NullString{String: match.SongID, Valid: true}
		p.ArtistID = sql.NullString{String: match.ArtistID, Valid: true}
	}
	return p
}

// NewTimeRow decomposes t (converted to UTC) into calendar fields.
// Week is the ISO-8601 week number; weekday counts from Monday=0 to Sunday=6.
func NewTimeRow(t time.Time) *store.TimeRow {
	t = t.UTC()
	_, week := t.ISOWeek()
	return &store.TimeRow{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}
}
