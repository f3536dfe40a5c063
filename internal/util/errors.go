package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrMalformedRecord indicates a JSON record is unparseable or lacks a required field
	ErrMalformedRecord = errors.New("malformed record")

	// ErrEmptyFile indicates a data file holds no records where at least one is required
	ErrEmptyFile = errors.New("no records in file")

	// ErrUnsupported indicates a data root scheme or database driver is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
