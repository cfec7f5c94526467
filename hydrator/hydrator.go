// Package hydrator reconstructs a source tree from a Catalog and a
// chunk store, and verifies/cleans a chunk store against a catalog.
package hydrator

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/chunk"
	"github.com/FloGa/crazy-deduper/chunkstore"
)

// errNotComputed is returned by the Chunks callback passed during
// hydration and verification. A record loaded from a catalog file has
// its chunks populated via SetChunks only when its entry carries a chunk
// list; for an entry without one the callback runs, Hydrate fails on
// that record, and CheckCache and ListExtraFiles skip it.
var errNotComputed = errors.New("record has no computed chunks")

// Hydrator rebuilds files under Target from chunks in Store, as
// described by a Catalog.
type Hydrator struct {
	Store  *chunkstore.ChunkStore
	Target string
}

// New creates a Hydrator writing into target, reading chunks from store.
func New(store *chunkstore.ChunkStore, target string) *Hydrator {
	return &Hydrator{Store: store, Target: target}
}

// Hydrate reconstructs every cataloged file under h.Target, streaming
// each file's chunks in order and restoring its recorded mtime.
func (h *Hydrator) Hydrate(c *catalog.Catalog) error {
	if err := os.MkdirAll(h.Target, 0o755); err != nil {
		return errors.Wrapf(err, "create target %s", h.Target)
	}

	for _, r := range c.Values() {
		if err := h.hydrateOne(r); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hydrator) hydrateOne(r *catalog.FileRecord) error {
	dest := filepath.Join(h.Target, filepath.FromSlash(r.Path))

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "create parent dir for %s", dest)
	}

	f, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "create %s", dest)
	}

	refs, _, err := r.Chunks(func() ([]chunk.Ref, error) { return nil, errNotComputed })
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "%s", r.Path)
	}

	for _, ref := range refs {
		src := h.Store.Path(ref.Hash)
		if err := copyChunk(f, src); err != nil {
			f.Close()
			return errors.Wrapf(err, "hydrate chunk %s into %s", ref.Hash, dest)
		}
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", dest)
	}

	if err := os.Chtimes(dest, r.Mtime, r.Mtime); err != nil {
		return errors.Wrapf(err, "restore mtime of %s", dest)
	}

	logrus.WithField("path", r.Path).Debug("hydrated")
	return nil
}

func copyChunk(dst io.Writer, chunkPath string) error {
	f, err := os.Open(chunkPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", chunkPath)
	}
	defer f.Close()

	_, err = io.Copy(dst, f)
	return err
}
