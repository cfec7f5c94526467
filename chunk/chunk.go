// Package chunk implements the fixed-size chunking engine: splitting a
// file into 1 MiB byte ranges and hashing each range in parallel over a
// single shared file handle.
package chunk

import "fmt"

// Size is the fixed chunk stride, in bytes. Only the final chunk of a
// file may be shorter; no other value is ever used, and it never changes
// across runs.
const Size = 1 << 20 // 1 MiB

// Ref identifies one contiguous byte range of a source file by its
// position, length, and content hash.
type Ref struct {
	Start uint64
	Size  uint64
	Hash  string // lowercase hex digest

	// SourcePath is attached only while a Ref is in flight from the
	// Chunker/Catalog towards a writer; it is never persisted.
	SourcePath string
}

// Equal reports whether two refs name the same content, ignoring
// SourcePath and Start (two refs pointing at identical bytes in
// different files are still "the same chunk" for dedup purposes).
func (r Ref) Equal(other Ref) bool {
	return r.Hash == other.Hash && r.Size == other.Size
}

// String implements fmt.Stringer for diagnostics.
func (r Ref) String() string {
	return fmt.Sprintf("chunk{start=%d, size=%d, hash=%s}", r.Start, r.Size, r.Hash)
}
