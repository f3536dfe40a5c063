package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventRunStart   EventType = "run_start"
	EventRunEnd     EventType = "run_end"
	EventFilesFound EventType = "files_found"
	EventFileLoaded EventType = "file_loaded"
	EventUnmatched  EventType = "unmatched_play"
	EventError      EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the run's audit log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	Root      string            `json:"root,omitempty"`
	Path      string            `json:"path,omitempty"`
	Files     int               `json:"files,omitempty"`
	Records   int               `json:"records,omitempty"`
	Songplays int               `json:"songplays,omitempty"`
	Unmatched int               `json:"unmatched,omitempty"`
	Bytes     int64             `json:"bytes,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates events-<timestamp>.jsonl under outputDir.
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug).
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    uuid.NewString(),
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogRunStart records the roots of a load
func (l *EventLogger) LogRunStart(songRoot, logRoot string) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventRunStart,
		Extra: map[string]string{
			"song_data": songRoot,
			"log_data":  logRoot,
		},
	})
}

// LogFilesFound records how many files a tree holds
func (l *EventLogger) LogFilesFound(root string, files int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventFilesFound,
		Root:  root,
		Files: files,
	})
}

// LogFileLoaded records one committed file
func (l *EventLogger) LogFileLoaded(path string, records, songplays, unmatched int, bytes int64, duration time.Duration) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventFileLoaded,
		Path:      path,
		Records:   records,
		Songplays: songplays,
		Unmatched: unmatched,
		Bytes:     bytes,
		Duration:  duration.Milliseconds(),
	})
}

// LogUnmatched records a play whose song could not be found in the catalog
func (l *EventLogger) LogUnmatched(path, title, artist string, length float64) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventUnmatched,
		Path:  path,
		Extra: map[string]string{
			"song":   title,
			"artist": artist,
			"length": fmt.Sprintf("%g", length),
		},
	})
}

// LogError records the failure that aborted a run
func (l *EventLogger) LogError(path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: EventError,
		Path:  path,
		Error: err.Error(),
	})
}

// LogRunEnd records the totals of a load
func (l *EventLogger) LogRunEnd(files, songplays, unmatched int, bytes int64, duration time.Duration) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventRunEnd,
		Files:     files,
		Songplays: songplays,
		Unmatched: unmatched,
		Bytes:     bytes,
		Duration:  duration.Milliseconds(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the identifier stamped on every event
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
