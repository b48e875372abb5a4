package visibility

import (
	"bytes"
	"io"

	"calltrace/internal/model"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

// Store persists an Info as a TOML document at Path.
type Store struct {
	FS     vfs.FS
	Path   string
	Logger *zap.Logger

	// ReadOnly skips the writability check in Load, for callers that never
	// Save.
	ReadOnly bool
}

// NewStore returns a Store for path on the operating system's file system.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{FS: vfs.Default, Path: path, Logger: logger}
}

func (s *Store) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Load reads the visibility file. A missing file yields an empty Info. A file
// that exists but is not writable fails with model.ErrPermission, since the
// set has to be flushed back on exit; one that cannot be read or parsed fails
// with model.ErrFormat.
func (s *Store) Load() (*Info, error) {
	stat, err := s.FS.Stat(s.Path)
	if oserror.IsNotExist(err) {
		s.logger().Info("visibility file does not exist, starting empty", zap.String("path", s.Path))
		return &Info{}, nil
	}
	if err != nil {
		return nil, model.MarkFormat(err, "failed to get metadata of %s", s.Path)
	}
	if stat.IsDir() {
		return nil, model.MarkFormat(errors.New("is a directory"), "failed to read %s", s.Path)
	}
	if !s.ReadOnly && stat.Mode().Perm()&0o200 == 0 {
		return nil, errors.Mark(
			errors.Newf("visibility file %s must be writable", s.Path), model.ErrPermission)
	}

	f, err := s.FS.Open(s.Path)
	if err != nil {
		return nil, model.MarkFormat(err, "failed to open %s", s.Path)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, model.MarkFormat(err, "failed to read %s", s.Path)
	}

	info := &Info{}
	if err := toml.Unmarshal(data, info); err != nil {
		return nil, model.MarkFormat(err, "failed to parse %s", s.Path)
	}
	s.logger().Info("loaded visibility file",
		zap.String("path", s.Path), zap.Int("entries", info.Len()))
	return info, nil
}

// Save writes info to a temporary file next to Path, syncs it and renames it
// over Path, so an interrupted save leaves the previous file intact. Failures
// are marked model.ErrIO.
func (s *Store) Save(info *Info) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(info); err != nil {
		return model.MarkIO(err, "failed to encode visibility info")
	}

	tmp := s.Path + ".tmp"
	if err := s.writeFile(tmp, buf.Bytes()); err != nil {
		_ = s.FS.Remove(tmp)
		return model.MarkIO(err, "failed to write %s", tmp)
	}
	if err := s.FS.Rename(tmp, s.Path); err != nil {
		_ = s.FS.Remove(tmp)
		return model.MarkIO(err, "failed to write toml into %s", s.Path)
	}
	if err := s.syncDir(); err != nil {
		// The rename has happened; only its durability is in doubt.
		s.logger().Warn("failed to sync visibility directory", zap.String("path", s.Path), zap.Error(err))
	}
	s.logger().Info("saved visibility file",
		zap.String("path", s.Path), zap.Int("entries", info.Len()))
	return nil
}

func (s *Store) writeFile(name string, data []byte) error {
	f, err := s.FS.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) syncDir() error {
	dir := s.FS.PathDir(s.Path)
	if dir == "" {
		dir = "."
	}
	d, err := s.FS.OpenDir(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
