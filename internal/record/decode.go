// Package record decodes the line-delimited JSON song and event files and
// projects each record into the rows the store persists.
package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/franz/sparkify-etl/internal/util"
)

// Stats describes what was read from one file
type Stats struct {
	Lines int   // non-blank lines decoded
	Bytes int64 // bytes consumed from the reader
}

// decodeLines decodes one JSON object per line. Blank lines are skipped.
// A line that fails to decode aborts the whole file.
func decodeLines[T any](r io.Reader) ([]T, Stats, error) {
	var (
		out   []T
		stats Stats
	)

	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		stats.Bytes += int64(len(line))
		if err != nil && err != io.EOF {
			return nil, stats, fmt.Errorf("read line %d: %w", lineNo, err)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var rec T
			if uerr := json.Unmarshal(trimmed, &rec); uerr != nil {
				return nil, stats, fmt.Errorf("line %d: %w: %v", lineNo, util.ErrMalformedRecord, uerr)
			}
			out = append(out, rec)
			stats.Lines++
		}

		if err == io.EOF {
			return out, stats, nil
		}
	}
}

// FlexInt is an integer that may arrive as a JSON number or a numeric string.
// The event logs carry userId as a string, and as "" on logged-out events.
type FlexInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON accepts 42, "42", null and ""
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*f = FlexInt{}

	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	text := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		text = s
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return fmt.Errorf("%q is not an integer", text)
	}

	f.Value, f.Valid = n, true
	return nil
}
