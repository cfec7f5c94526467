// Package catalog implements the in-memory path→FileRecord mapping: the
// data model, the write-once lazy chunk slot, and the keyed container
// with its lazy chunk-streaming iteration.
package catalog

import (
	"sync"
	"time"

	"github.com/FloGa/crazy-deduper/chunk"
)

// FileRecord is one cataloged source file.
//
// Equality for cache-reuse purposes is defined solely over
// (Path, Size, Mtime) — see Matches. Base is runtime-only, rebound on
// every scan, and never persisted.
type FileRecord struct {
	Path  string // relative, forward-slash-normalized
	Size  uint64
	Mtime time.Time

	Base string // absolute source root; runtime-only, never persisted

	chunksOnce sync.Once
	chunks     []chunk.Ref
	chunkErr   error
}

// NewFileRecord builds a record with no chunks computed yet.
func NewFileRecord(path string, size uint64, mtime time.Time, base string) *FileRecord {
	return &FileRecord{Path: path, Size: size, Mtime: mtime, Base: base}
}

// Matches implements the freshness predicate: equality over
// (path, size, mtime). mtime comparison is exact, down to the
// nanosecond.
func (r *FileRecord) Matches(path string, size uint64, mtime time.Time) bool {
	return r.Path == path && r.Size == size && r.Mtime.Equal(mtime)
}

// HasChunks reports whether chunks have already been computed for this
// record, without triggering computation.
func (r *FileRecord) HasChunks() bool {
	return r.chunks != nil
}

// Chunks returns the record's chunk sequence, computing it on first call
// via fn if absent. Once populated, the slot never changes: concurrent
// callers all observe the same slice.
//
// fresh reports whether this call is the one that triggered computation.
func (r *FileRecord) Chunks(fn func() ([]chunk.Ref, error)) (refs []chunk.Ref, fresh bool, err error) {
	r.chunksOnce.Do(func() {
		r.chunks, r.chunkErr = fn()
		fresh = true
	})
	return r.chunks, fresh, r.chunkErr
}

// SetChunks installs an already-computed chunk sequence, used by the
// codec when loading a persisted record. It is a no-op if chunks were
// already set (the write-once slot is never overwritten).
func (r *FileRecord) SetChunks(refs []chunk.Ref) {
	r.chunksOnce.Do(func() {
		r.chunks = refs
	})
}
