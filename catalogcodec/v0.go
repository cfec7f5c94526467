package catalogcodec

import (
	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/chunk"
)

// fileRecordV0 is the legacy, read-only, untagged flat-array format.
// Timestamps are kept in the same {s,n} shape as v1 for simplicity; an
// RFC-3339-ish string form also exists in the wild but was never
// produced by any Go build of this tool, so no decoder branch is added
// for it here.
type fileRecordV0 struct {
	Path             string           `json:"path"`
	Size             uint64           `json:"size"`
	Mtime            onDiskTime       `json:"mtime"`
	Chunks           *[]onDiskChunkV0 `json:"chunks"`
	HashingAlgorithm string           `json:"hashing_algorithm"`
}

type onDiskChunkV0 struct {
	Start uint64 `json:"start"`
	Size  uint64 `json:"size"`
	Hash  string `json:"hash"`
}

// migrateV0 buckets the flat record list into the shape StreamChunks
// et al. expect, adopting the first record's algorithm for the whole
// catalog. A v0 catalog mixing algorithms across records is not
// rejected, just silently unified under the first record's algorithm.
func migrateV0(records []fileRecordV0) ([]*catalog.FileRecord, string, error) {
	algorithm := ""
	if len(records) > 0 {
		algorithm = records[0].HashingAlgorithm
	}

	out := make([]*catalog.FileRecord, len(records))
	for i, rv0 := range records {
		r := catalog.NewFileRecord(rv0.Path, rv0.Size, rv0.Mtime.toTime(), "")
		if rv0.Chunks != nil {
			refs := make([]chunk.Ref, len(*rv0.Chunks))
			for j, c := range *rv0.Chunks {
				refs[j] = chunk.Ref{Start: c.Start, Size: c.Size, Hash: c.Hash}
			}
			r.SetChunks(refs)
		}
		out[i] = r
	}
	return out, algorithm, nil
}
