package model

import "github.com/cockroachdb/errors"

// Error markers shared by the trace, visibility and session packages.
// Concrete errors are wrapped with context and marked with one of these so
// callers can classify them with errors.Is.
var (
	// ErrIO marks trace or visibility file read/write failures.
	ErrIO = errors.New("io error")
	// ErrFormat marks a visibility file that exists but cannot be parsed.
	ErrFormat = errors.New("format error")
	// ErrPermission marks a visibility file that exists but is not writable.
	ErrPermission = errors.New("permission error")
	// ErrPattern marks an invalid search pattern.
	ErrPattern = errors.New("pattern error")
)

// MarkIO wraps err with msg and marks it as an ErrIO.
func MarkIO(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIO)
}

// MarkFormat wraps err with msg and marks it as an ErrFormat.
func MarkFormat(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrFormat)
}
