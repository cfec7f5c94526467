package catalog

import (
	"path/filepath"
	"sync"

	"github.com/FloGa/crazy-deduper/chunk"
)

// Catalog is a keyed container of FileRecord by relative path. All
// records in a Catalog share one HashingAlgorithm.
type Catalog struct {
	mu        sync.RWMutex
	records   map[string]*FileRecord
	Algorithm string
}

// New creates an empty Catalog.
func New(algorithm string) *Catalog {
	return &Catalog{records: make(map[string]*FileRecord), Algorithm: algorithm}
}

// Get returns the record at path, if any.
func (c *Catalog) Get(path string) (*FileRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[path]
	return r, ok
}

// Contains reports whether path is cataloged.
func (c *Catalog) Contains(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[path]
	return ok
}

// Insert adds or replaces the record at its Path.
func (c *Catalog) Insert(r *FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[r.Path] = r
}

// MutGet returns the record at path for in-place mutation (e.g.
// rebinding Base), if present.
func (c *Catalog) MutGet(path string) (*FileRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[path]
	return r, ok
}

// Delete removes the record at path, if present.
func (c *Catalog) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, path)
}

// Values returns all records, in no particular order.
func (c *Catalog) Values() []*FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*FileRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	return out
}

// Len returns the number of cataloged records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Drain removes and returns all records, leaving the Catalog empty.
func (c *Catalog) Drain() []*FileRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*FileRecord, 0, len(c.records))
	for k, r := range c.records {
		out = append(out, r)
		delete(c.records, k)
	}
	return out
}

// ChunkEvent is one entry of the lazy StreamChunks sequence: a chunk
// ref (carrying its SourcePath for the caller to read bytes from) plus
// whether this call was the one that triggered computing its record's
// chunks. FreshlyComputed is true at most once per record, on the first
// chunk emitted for it.
type ChunkEvent struct {
	Ref             chunk.Ref
	FreshlyComputed bool
}

// ChunkComputer produces the ordered chunk sequence for one file.
// Callers of StreamChunks (cmd/deduper, the benchmark tests) wire this to
// chunk.Chunker.Chunk bound to each record's Base and Path; the Scanner
// itself never computes chunks.
type ChunkComputer func(r *FileRecord) ([]chunk.Ref, error)

// StreamChunks yields every chunk of every record in the catalog, in
// ascending Start order within a record. Iteration order across records
// is unspecified. For any record whose chunks were not yet computed,
// iterating it triggers computation via compute; the first emitted ref
// for that record carries FreshlyComputed = true, every subsequent one
// false.
//
// The catalog is only read during the stream: chunk computation
// populates each record's own write-once slot, never the Catalog's map,
// so nothing here mutates the Catalog while it is being streamed.
func (c *Catalog) StreamChunks(compute ChunkComputer) func(yield func(ChunkEvent, error) bool) {
	records := c.Values()
	return func(yield func(ChunkEvent, error) bool) {
		for _, r := range records {
			refs, fresh, err := r.Chunks(func() ([]chunk.Ref, error) {
				return compute(r)
			})
			if err != nil {
				if !yield(ChunkEvent{}, err) {
					return
				}
				continue
			}
			for i, ref := range refs {
				ref.SourcePath = filepath.Join(r.Base, filepath.FromSlash(r.Path))
				if !yield(ChunkEvent{Ref: ref, FreshlyComputed: fresh && i == 0}, nil) {
					return
				}
			}
		}
	}
}
