// Package scanner walks a source tree and reconciles it against one or
// more loaded catalog files.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/catalogcodec"
)

// Options configures one scan.
type Options struct {
	Source         string
	CacheFiles     []string // most-accurate first
	Algorithm      string
	SameFileSystem bool
}

// Result is a loaded, reconciled Catalog plus the path new writes
// should target.
type Result struct {
	Catalog   *catalog.Catalog
	WritePath string // "" if no cache file was given
}

// Scan implements the full protocol: merge catalogs in reverse order,
// drop vanished records, walk the tree, reuse-or-replace-or-insert per
// file.
func Scan(opts Options) (*Result, error) {
	merged := catalog.New(opts.Algorithm)

	// Read each given catalog file in reverse order; later insertions
	// (i.e. earlier-listed, more-accurate files) overwrite earlier ones
	// by path.
	for i := len(opts.CacheFiles) - 1; i >= 0; i-- {
		loaded := catalogcodec.Load(opts.CacheFiles[i])
		for _, r := range loaded.Values() {
			merged.Insert(r)
		}
	}
	merged.Algorithm = opts.Algorithm

	// Drop every record whose source_root/path no longer exists.
	for _, r := range merged.Values() {
		full := filepath.Join(opts.Source, filepath.FromSlash(r.Path))
		if _, err := os.Stat(full); err != nil {
			merged.Delete(r.Path)
		}
	}

	// Walk the source tree (min depth 1), optionally restricted to one
	// filesystem, reconciling each regular file.
	var rootDev uint64
	if opts.SameFileSystem {
		dev, err := deviceOf(opts.Source)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", opts.Source)
		}
		rootDev = dev
	}

	err := filepath.WalkDir(opts.Source, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if full == opts.Source {
			return nil // min depth 1: skip the root itself
		}

		if d.IsDir() {
			if opts.SameFileSystem {
				dev, err := deviceOf(full)
				if err != nil {
					return errors.Wrapf(err, "stat %s", full)
				}
				if dev != rootDev {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return errors.Wrapf(err, "stat %s", full)
		}

		rel, err := filepath.Rel(opts.Source, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		reconcile(merged, opts.Source, rel, uint64(info.Size()), info.ModTime())
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", opts.Source)
	}

	var writePath string
	if len(opts.CacheFiles) > 0 {
		writePath = opts.CacheFiles[0]
	}

	logrus.WithFields(logrus.Fields{
		"source": opts.Source,
		"files":  merged.Len(),
	}).Info("scan complete")

	return &Result{Catalog: merged, WritePath: writePath}, nil
}

// reconcile keeps an existing record (rebinding Base, preserving chunks)
// if it matches the freshness predicate, otherwise inserts a fresh
// candidate with no chunks computed yet.
func reconcile(c *catalog.Catalog, base, rel string, size uint64, mtime time.Time) {
	if existing, ok := c.MutGet(rel); ok && existing.Matches(rel, size, mtime) {
		existing.Base = base
		return
	}
	c.Insert(catalog.NewFileRecord(rel, size, mtime, base))
}

// deviceOf returns the filesystem device ID of path, used to detect
// mount-point crossings when SameFileSystem is set.
func deviceOf(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, nil
	}
	return uint64(stat.Dev), nil
}
