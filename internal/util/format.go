package util

import (
	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count for humans (e.g. "1.2 MB")
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatCount renders an integer with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}
