// Package etl runs the per-file transformers over the song and log trees
// and commits each file in its own transaction.
package etl

import (
	"context"
	"fmt"

	"github.com/franz/sparkify-etl/internal/record"
	"github.com/franz/sparkify-etl/internal/report"
	"github.com/franz/sparkify-etl/internal/source"
	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

// FileStats describes what one file contributed
type FileStats struct {
	Records   int // records decoded
	Plays     int // NextSong events
	Songplays int
	Unmatched int // songplays without a catalog match
	Bytes     int64
}

// FileFunc processes one data file inside the driver's transaction
type FileFunc func(ctx context.Context, tx *store.Tx, path string) (FileStats, error)

// Processor holds the transformers for song and log files
type Processor struct {
	source    source.Source
	normalize bool
	logger    *report.EventLogger
}

// NewProcessor creates a processor reading through src. With normalize set,
// song titles and artist names are rewritten to Unicode NFC on both sides of
// the songplay lookup.
func NewProcessor(src source.Source, normalize bool, logger *report.EventLogger) *Processor {
	return &Processor{
		source:    src,
		normalize: normalize,
		logger:    logger,
	}
}

// ProcessSongFile loads the artist and song of one song file. Only the first
// record is used.
func (p *Processor) ProcessSongFile(ctx context.Context, tx *store.Tx, path string) (FileStats, error) {
	songs, stats, err := p.decodeSongs(ctx, path)
	if err != nil {
		return FileStats{}, err
	}
	if len(songs) == 0 {
		return FileStats{}, util.ErrEmptyFile
	}
	if len(songs) > 1 {
		util.DebugLog("%s holds %d records, using the first", path, len(songs))
	}

	rec := songs[0]
	if err := rec.Validate(); err != nil {
		return FileStats{}, err
	}
	if p.normalize {
		rec.NormalizeText()
	}

	if err := tx.InsertArtist(ctx, rec.Artist()); err != nil {
		return FileStats{}, err
	}
	if err := tx.InsertSong(ctx, rec.Song()); err != nil {
		return FileStats{}, err
	}

	return FileStats{Records: stats.Lines, Bytes: stats.Bytes}, nil
}

func (p *Processor) decodeSongs(ctx context.Context, path string) ([]record.SongRecord, record.Stats, error) {
	rc, err := p.source.Open(ctx, path)
	if err != nil {
		return nil, record.Stats{}, err
	}
	defer rc.Close()
	return record.DecodeSongs(rc)
}

// ProcessLogFile loads the time, user and songplay rows of one event log
// file. Each pass walks the play events in file order.
func (p *Processor) ProcessLogFile(ctx context.Context, tx *store.Tx, path string) (FileStats, error) {
	events, stats, err := p.decodeEvents(ctx, path)
	if err != nil {
		return FileStats{}, err
	}

	plays := record.FilterPlays(events)
	for i := range plays {
		if err := plays[i].Validate(); err != nil {
			return FileStats{}, fmt.Errorf("play %d: %w", i+1, err)
		}
		if p.normalize {
			plays[i].NormalizeText()
		}
	}

	for i := range plays {
		if err := tx.InsertTime(ctx, record.NewTimeRow(plays[i].StartTime())); err != nil {
			return FileStats{}, err
		}
	}

	for i := range plays {
		if err := tx.UpsertUser(ctx, plays[i].User()); err != nil {
			return FileStats{}, err
		}
	}

	fs := FileStats{Records: stats.Lines, Plays: len(plays), Bytes: stats.Bytes}
	for i := range plays {
		play := &plays[i]
		match, err := tx.SelectSongAndArtist(ctx, *play.Song, *play.Artist, *play.Length)
		if err != nil {
			return FileStats{}, err
		}
		if match == nil {
			fs.Unmatched++
			p.logger.LogUnmatched(path, *play.Song, *play.Artist, *play.Length)
		}
		if err := tx.InsertSongplay(ctx, play.Songplay(match)); err != nil {
			return FileStats{}, err
		}
		fs.Songplays++
	}

	return fs, nil
}

func (p *Processor) decodeEvents(ctx context.Context, path string) ([]record.EventRecord, record.Stats, error) {
	rc, err := p.source.Open(ctx, path)
	if err != nil {
		return nil, record.Stats{}, err
	}
	defer rc.Close()
	return record.DecodeEvents(rc)
}
