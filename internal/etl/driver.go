package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/sparkify-etl/internal/report"
	"github.com/franz/sparkify-etl/internal/source"
	"github.com/franz/sparkify-etl/internal/store"
	"github.com/franz/sparkify-etl/internal/util"
)

// Driver walks a data tree and applies a FileFunc to each file
type Driver struct {
	store     *store.Store
	source    source.Source
	processor *Processor
	logger    *report.EventLogger
}

// Config holds driver configuration
type Config struct {
	Store     *store.Store
	Source    source.Source
	Normalize bool // NFC-normalize titles and artist names
	Logger    *report.EventLogger
}

// New creates a new Driver
func New(cfg *Config) *Driver {
	return &Driver{
		store:     cfg.Store,
		source:    cfg.Source,
		processor: NewProcessor(cfg.Source, cfg.Normalize, cfg.Logger),
		logger:    cfg.Logger,
	}
}

// Processor returns the song and log transformers
func (d *Driver) Processor() *Processor {
	return d.processor
}

// Result represents the outcome of a run
type Result struct {
	FilesFound     int
	FilesProcessed int
	Records        int
	Plays          int
	Songplays      int
	Unmatched      int
	BytesRead      int64
	Duration       time.Duration
}

func (r *Result) addFile(fs FileStats) {
	r.FilesProcessed++
	r.Records += fs.Records
	r.Plays += fs.Plays
	r.Songplays += fs.Songplays
	r.Unmatched += fs.Unmatched
	r.BytesRead += fs.Bytes
}

func (r *Result) add(o *Result) {
	if o == nil {
		return
	}
	r.FilesFound += o.FilesFound
	r.FilesProcessed += o.FilesProcessed
	r.Records += o.Records
	r.Plays += o.Plays
	r.Songplays += o.Songplays
	r.Unmatched += o.Unmatched
	r.BytesRead += o.BytesRead
	r.Duration += o.Duration
}

// Run processes every file under root with fn, committing after each file.
// The first failure rolls back that file and stops the run; files committed
// before it stay in the database. The partial result is returned with the error.
func (d *Driver) Run(ctx context.Context, root string, fn FileFunc) (*Result, error) {
	start := time.Now()
	result := &Result{}

	files, err := d.source.Find(ctx, root)
	if err != nil {
		d.logger.LogError(root, err)
		return result, fmt.Errorf("failed to find files in %s: %w", root, err)
	}

	total := len(files)
	result.FilesFound = total
	util.InfoLog("%d files found in %s", total, root)
	d.logger.LogFilesFound(root, total)

	var bar *progressbar.ProgressBar
	if util.ShowProgressBar() && total > 0 {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		fileStart := time.Now()
		fs, err := d.processFile(ctx, path, fn)
		if err != nil {
			if bar != nil {
				bar.Exit()
			}
			d.logger.LogError(path, err)
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%s: %w", path, err)
		}

		result.addFile(fs)
		d.logger.LogFileLoaded(path, fs.Records, fs.Songplays, fs.Unmatched, fs.Bytes, time.Since(fileStart))

		if bar != nil {
			bar.Add(1)
		} else {
			util.InfoLog("%d/%d files processed.", i+1, total)
		}
	}

	if bar != nil {
		bar.Finish()
		util.InfoLog("%d/%d files processed.", total, total)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// processFile runs fn in a fresh transaction
func (d *Driver) processFile(ctx context.Context, path string, fn FileFunc) (FileStats, error) {
	tx, err := d.store.Begin(ctx)
	if err != nil {
		return FileStats{}, err
	}

	fs, err := fn(ctx, tx, path)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			util.WarnLog("Rollback of %s failed: %v", path, rbErr)
		}
		return FileStats{}, err
	}

	if err := tx.Commit(); err != nil {
		return FileStats{}, err
	}
	return fs, nil
}

// LoadResult holds the results of both trees
type LoadResult struct {
	Songs *Result
	Logs  *Result
}

// Total sums both trees
func (r *LoadResult) Total() *Result {
	total := &Result{}
	total.add(r.Songs)
	total.add(r.Logs)
	return total
}

// LoadAll loads the song tree and then the log tree. The log tree is not
// touched when the song tree fails.
func (d *Driver) LoadAll(ctx context.Context, songRoot, logRoot string) (*LoadResult, error) {
	d.logger.LogRunStart(songRoot, logRoot)
	lr := &LoadResult{}

	var err error
	lr.Songs, err = d.Run(ctx, songRoot, d.processor.ProcessSongFile)
	if err != nil {
		d.logRunEnd(lr)
		return lr, err
	}

	lr.Logs, err = d.Run(ctx, logRoot, d.processor.ProcessLogFile)
	d.logRunEnd(lr)
	if err != nil {
		return lr, err
	}

	total := lr.Total()
	util.SuccessLog("Loaded %d files (%s), %d songplays, %d unmatched, in %s",
		total.FilesProcessed, util.FormatBytes(total.BytesRead),
		total.Songplays, total.Unmatched, total.Duration.Round(time.Millisecond))
	return lr, nil
}

func (d *Driver) logRunEnd(lr *LoadResult) {
	total := lr.Total()
	d.logger.LogRunEnd(total.FilesProcessed, total.Songplays, total.Unmatched, total.BytesRead, total.Duration)
}
