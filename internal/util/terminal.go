package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgressBar reports whether an interactive progress bar should be drawn:
// stdout must be a terminal and quiet mode must be off.
func ShowProgressBar() bool {
	return IsTerminal(os.Stdout.Fd()) && !IsQuiet()
}
