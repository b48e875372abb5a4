package trace

import (
	"io"

	"calltrace/internal/model"

	"github.com/cockroachdb/pebble/vfs"
)

// Source reads trace text from a file. Every Read re-reads the whole file.
type Source struct {
	FS   vfs.FS
	Path string
}

// NewSource returns a Source for path on the operating system's file system.
func NewSource(path string) *Source {
	return &Source{FS: vfs.Default, Path: path}
}

// Read returns the full contents of the trace file. Failures are marked
// model.ErrIO.
func (s *Source) Read() (string, error) {
	f, err := s.FS.Open(s.Path)
	if err != nil {
		return "", model.MarkIO(err, "failed to read %s", s.Path)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", model.MarkIO(err, "failed to read %s", s.Path)
	}
	return string(data), nil
}
