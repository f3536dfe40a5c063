package record

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

// SongRecord is one line of a song metadata file
type SongRecord struct {
	SongID          *string  `json:"song_id"`
	Title           *string  `json:"title"`
	ArtistID        *string  `json:"artist_id"`
	Year            *int     `json:"year"`
	Duration        *float64 `json:"duration"`
	ArtistName      *string  `json:"artist_name"`
	ArtistLocation  *string  `json:"artist_location"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
}

// DecodeSongs reads every song record from r
func DecodeSongs(r io.Reader) ([]SongRecord, Stats, error) {
	return decodeLines[SongRecord](r)
}

// Validate checks the fields the songs and artists tables cannot do without.
// Artist location and coordinates may be null.
func (r *SongRecord) Validate() error {
	var missing []string
	if r.SongID == nil || *r.SongID == "" {
		missing = append(missing, "song_id")
	}
	if r.Title == nil {
		missing = append(missing, "title")
	}
	if r.ArtistID == nil || *r.ArtistID == "" {
		missing = append(missing, "artist_id")
	}
	if r.Year == nil {
		missing = append(missing, "year")
	}
	if r.Duration == nil {
		missing = append(missing, "duration")
	}
	if r.ArtistName == nil {
		missing = append(missing, "artist_name")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", util.ErrMalformedRecord, strings.Join(missing, ", "))
	}
	return nil
}

// NormalizeText rewrites the title and artist name into Unicode NFC
func (r *SongRecord) NormalizeText() {
	nfc(r.Title)
	nfc(r.ArtistName)
	nfc(r.ArtistLocation)
}

// Song projects the songs row. Validate must have passed.
func (r *SongRecord) Song() *store.Song {
	return &store.Song{
		SongID:   *r.SongID,
		Title:    *r.Title,
		ArtistID: *r.ArtistID,
		Year:     *r.Year,
		Duration: *r.Duration,
	}
}

// Artist projects the artists row. Validate must have passed.
func (r *SongRecord) Artist() *store.Artist {
	return &store.Artist{
		ArtistID:  *r.ArtistID,
		Name:      *r.ArtistName,
		Location:  nullString(r.ArtistLocation),
		Latitude:  nullFloat(r.ArtistLatitude),
		Longitude: nullFloat(r.ArtistLongitude),
	}
}

func nfc(s *string) {
	if s != nil {
		*s = norm.NFC.String(*s)
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
