package hydrator

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/chunk"
)

// CheckCache verifies that every chunk referenced by c exists in the
// store and has the size its Ref records. This is a size-only check,
// never a content re-hash — re-hashing the whole store on every
// validation run would defeat the point of caching it in the first
// place, so a corrupted-but-right-sized chunk passes.
func (h *Hydrator) CheckCache(c *catalog.Catalog) bool {
	ok := true
	for _, r := range c.Values() {
		refs, _, err := r.Chunks(func() ([]chunk.Ref, error) { return nil, errNotComputed })
		if err != nil {
			logrus.WithField("path", r.Path).Warn("record has no computed chunks, skipping")
			continue
		}
		for _, ref := range refs {
			if !h.checkOne(ref) {
				ok = false
			}
		}
	}
	return ok
}

func (h *Hydrator) checkOne(ref chunk.Ref) bool {
	path := h.Store.Path(ref.Hash)
	info, err := os.Stat(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{"hash": ref.Hash, "path": path}).Warn("chunk missing")
		return false
	}
	if uint64(info.Size()) != ref.Size {
		logrus.WithFields(logrus.Fields{
			"hash": ref.Hash, "path": path, "want": ref.Size, "got": info.Size(),
		}).Warn("chunk size mismatch")
		return false
	}
	return true
}

// ListExtraFiles enumerates every file under the store's data directory
// that does not correspond to any chunk referenced by c, at the store's
// own declutter level. Comparison is by path, so it is sensitive to the
// declutter level the store was opened with.
func (h *Hydrator) ListExtraFiles(c *catalog.Catalog) ([]string, error) {
	expected := make(map[string]struct{})
	for _, r := range c.Values() {
		refs, _, err := r.Chunks(func() ([]chunk.Ref, error) { return nil, errNotComputed })
		if err != nil {
			continue
		}
		for _, ref := range refs {
			expected[h.Store.Path(ref.Hash)] = struct{}{}
		}
	}

	var extra []string
	dataDir := h.Store.DataDir()
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, want := expected[path]; !want {
			extra = append(extra, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", dataDir)
	}
	return extra, nil
}

// DeleteExtraFiles removes every file ListExtraFiles would report.
func (h *Hydrator) DeleteExtraFiles(c *catalog.Catalog) (int, error) {
	extra, err := h.ListExtraFiles(c)
	if err != nil {
		return 0, err
	}
	for _, path := range extra {
		if err := os.Remove(path); err != nil {
			return 0, errors.Wrapf(err, "remove %s", path)
		}
		logrus.WithField("path", path).Debug("removed extra chunk file")
	}
	return len(extra), nil
}
