// Package chunkstore materializes unique chunks under
// <target>/data/<declutter(hash)> with at-most-once write semantics.
package chunkstore

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ChunkStore writes content-addressed chunk files under Root/data.
type ChunkStore struct {
	Root      string
	Declutter int
}

// New creates a ChunkStore rooted at root with the given declutter
// level (0 or greater).
func New(root string, declutter int) *ChunkStore {
	return &ChunkStore{Root: root, Declutter: declutter}
}

// DataDir is Root/data, the directory all chunk files live under.
func (s *ChunkStore) DataDir() string {
	return filepath.Join(s.Root, "data")
}

// Path returns the on-disk path of the chunk named by hash, applying
// this store's declutter level.
func (s *ChunkStore) Path(hash string) string {
	return filepath.Join(s.DataDir(), Declutter(s.Declutter, hash))
}

// Declutter inserts level single-hex-character directory levels taken
// from the leading characters of hash before the full hash filename.
// Declutter(0, h) is the identity.
func Declutter(level int, hash string) string {
	if level <= 0 {
		return hash
	}
	if level > len(hash) {
		level = len(hash)
	}
	parts := make([]string, 0, level+1)
	for i := 0; i < level; i++ {
		parts = append(parts, string(hash[i]))
	}
	parts = append(parts, hash)
	return filepath.Join(parts...)
}

// Save writes data under the chunk's content-addressed path if no file
// exists there yet: at-most-once materialization via a presence check,
// not a content-verify. Parent directories are created on demand. data
// must be exactly the chunk's [start, start+size) byte range; Save
// writes it as given, and SaveFrom is the helper that reads that range
// from a source file.
func (s *ChunkStore) Save(hash string, data []byte) error {
	dest := s.Path(hash)

	if _, err := os.Stat(dest); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create parent dir for %s", dest)
	}

	tmp := dest + ".tmp." + strconv.FormatInt(time.Now().UnixNano(), 10)
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create %s", tmp)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "close %s", tmp)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "rename %s to %s", tmp, dest)
	}

	logrus.WithFields(logrus.Fields{"hash": hash, "path": dest}).Debug("chunk materialized")
	return nil
}

// SaveFrom copies the byte range [start, start+size) of the file at
// sourcePath into the store under hash. It reopens sourcePath and reads
// the range again after it was hashed; nothing is read when a chunk
// with this hash is already present.
func (s *ChunkStore) SaveFrom(hash, sourcePath string, start, size int64) error {
	dest := s.Path(hash)
	if _, err := os.Stat(dest); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", dest)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "open %s", sourcePath)
	}
	defer f.Close()

	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(f, start, size), buf); err != nil {
			return errors.Wrapf(err, "read range [%d,%d) of %s", start, start+size, sourcePath)
		}
	}
	return s.Save(hash, buf)
}

// Exists reports whether a chunk named by hash is already materialized.
func (s *ChunkStore) Exists(hash string) bool {
	_, err := os.Stat(s.Path(hash))
	return err == nil
}
