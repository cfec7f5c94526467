package catalogcodec

import (
	"encoding/json"
	"path"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/chunk"
)

// envelopeV1 is the tagged current-version wrapper.
type envelopeV1 struct {
	V string    `json:"v"`
	C payloadV1 `json:"c"`
}

// payloadV1 carries the whole-catalog hashing algorithm and the path
// trie.
type payloadV1 struct {
	H string  `json:"h"`
	F trieDir `json:"f"`
}

// trieDir is a directory node: a mapping from one path component to
// either a nested trieDir or a trieLeaf. JSON can't express a tagged
// union of "object shaped like a directory" vs "object shaped like a
// leaf" without a discriminator, so leaves are distinguished
// structurally: a leaf is any member object carrying both "s" and "m"
// keys, everything else is a subdirectory.
type trieDir map[string]trieNode

// trieNode is either a directory (Dir != nil) or a leaf (Leaf != nil),
// never both.
type trieNode struct {
	Dir  trieDir
	Leaf *trieLeaf
}

type trieLeaf struct {
	S uint64         `json:"s"`
	M onDiskTime     `json:"m"`
	C *[]onDiskChunk `json:"c,omitempty"`
}

type onDiskTime struct {
	S int64 `json:"s"`
	N int32 `json:"n"`
}

type onDiskChunk struct {
	S uint64 `json:"s"`
	I uint64 `json:"i"`
	H string `json:"h"`
}

func (t onDiskTime) toTime() time.Time {
	return time.Unix(t.S, int64(t.N)).UTC()
}

func timeToOnDisk(tm time.Time) onDiskTime {
	d := tm.UTC()
	return onDiskTime{S: d.Unix(), N: int32(d.Nanosecond())}
}

func (n trieNode) MarshalJSON() ([]byte, error) {
	if n.Leaf != nil {
		return json.Marshal(n.Leaf)
	}
	return json.Marshal(n.Dir)
}

func (n *trieNode) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	_, hasS := probe["s"]
	_, hasM := probe["m"]
	if hasS && hasM {
		var leaf trieLeaf
		if err := json.Unmarshal(data, &leaf); err != nil {
			return err
		}
		n.Leaf = &leaf
		return nil
	}
	var dir trieDir
	if err := json.Unmarshal(data, &dir); err != nil {
		return err
	}
	n.Dir = dir
	return nil
}

// buildTrie serializes records into a path trie, sorting keys at every
// level so output is stable and diffable.
func buildTrie(records []*catalog.FileRecord) trieDir {
	root := trieDir{}
	for _, r := range records {
		segments := splitPath(r.Path)
		insertLeaf(root, segments, recordToLeaf(r))
	}
	return root
}

func insertLeaf(dir trieDir, segments []string, leaf *trieLeaf) {
	if len(segments) == 1 {
		dir[segments[0]] = trieNode{Leaf: leaf}
		return
	}
	head, rest := segments[0], segments[1:]
	child, ok := dir[head]
	if !ok || child.Dir == nil {
		child = trieNode{Dir: trieDir{}}
	}
	insertLeaf(child.Dir, rest, leaf)
	dir[head] = child
}

func recordToLeaf(r *catalog.FileRecord) *trieLeaf {
	leaf := &trieLeaf{S: r.Size, M: timeToOnDisk(r.Mtime)}
	if r.HasChunks() {
		refs, _, _ := r.Chunks(func() ([]chunk.Ref, error) { return nil, nil })
		chunks := make([]onDiskChunk, len(refs))
		for i, ref := range refs {
			chunks[i] = onDiskChunk{S: ref.Start, I: ref.Size, H: ref.Hash}
		}
		leaf.C = &chunks
	}
	return leaf
}

// flatten walks the trie back into FileRecords whose Path is the
// '/'-joined concatenation of the keys from root to leaf.
func (p payloadV1) flatten() ([]*catalog.FileRecord, error) {
	var out []*catalog.FileRecord
	var walk func(dir trieDir, prefix []string) error
	walk = func(dir trieDir, prefix []string) error {
		keys := make([]string, 0, len(dir))
		for k := range dir {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node := dir[k]
			segs := append(append([]string{}, prefix...), k)
			switch {
			case node.Leaf != nil:
				out = append(out, leafToRecord(path.Join(segs...), node.Leaf))
			case node.Dir != nil:
				if err := walk(node.Dir, segs); err != nil {
					return err
				}
			default:
				return errors.Errorf("trie node %q is neither leaf nor directory", path.Join(segs...))
			}
		}
		return nil
	}
	if err := walk(p.F, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func leafToRecord(relPath string, leaf *trieLeaf) *catalog.FileRecord {
	r := catalog.NewFileRecord(relPath, leaf.S, leaf.M.toTime(), "")
	if leaf.C != nil {
		refs := make([]chunk.Ref, len(*leaf.C))
		for i, c := range *leaf.C {
			refs[i] = chunk.Ref{Start: c.S, Size: c.I, Hash: c.H}
		}
		r.SetChunks(refs)
	}
	return r
}

func splitPath(p string) []string {
	clean := path.Clean(path.ToSlash(p))
	if clean == "." || clean == "" {
		return []string{clean}
	}
	var segs []string
	for _, s := range splitSlash(clean) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func splitSlash(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	out = append(out, p[start:])
	return out
}
