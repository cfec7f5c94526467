package chunk

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	deduper "github.com/FloGa/crazy-deduper"
)

// Chunker splits one source file into its ordered Ref sequence: fixed
// 1 MiB stride, ascending Start, every ref but the last exactly Size
// bytes.
type Chunker struct {
	Algorithm deduper.HashingAlgorithm
}

// Chunk computes the ordered Ref sequence for path, whose size is
// already known to the caller (the Scanner stats the file once and
// passes it through rather than stat-ing it twice).
//
// Chunking within a file happens in parallel: one goroutine per chunk
// index, each performing a positional read (os.File.ReadAt, safe for
// concurrent callers on one handle) plus a hash. Refs are returned in
// ascending Start order regardless of completion order.
func (c Chunker) Chunk(ctx context.Context, path string, size int64) ([]Ref, error) {
	if size == 0 {
		hasher := deduper.Hasher{Algorithm: c.Algorithm}
		digest, err := hasher.EmptyDigest()
		if err != nil {
			return nil, errors.Wrap(err, "empty digest")
		}
		return []Ref{{Start: 0, Size: 0, Hash: digest}}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	n := int((size + Size - 1) / Size)
	refs := make([]Ref, n)

	g, ctx := errgroup.WithContext(ctx)
	for k := 0; k < n; k++ {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			offset := int64(k) * Size
			length := int64(Size)
			if remaining := size - offset; length > remaining {
				length = remaining
			}

			buf := make([]byte, length)
			if err := readFullAt(f, buf, offset); err != nil {
				return errors.Wrapf(err, "read chunk %d of %s", k, path)
			}

			hasher := deduper.Hasher{Algorithm: c.Algorithm}
			h, err := hasher.New()
			if err != nil {
				return err
			}
			h.Write(buf)

			refs[k] = Ref{
				Start: uint64(offset),
				Size:  uint64(length),
				Hash:  hexDigest(h.Sum(nil)),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// readFullAt retries ReadAt until buf is full or a true EOF occurs. A
// short read followed by EOF short of len(buf) means the file shrank
// out from under us mid-scan, which is a corruption/race, not a normal
// end of stream.
func readFullAt(r io.ReaderAt, buf []byte, offset int64) error {
	var read int
	for read < len(buf) {
		n, err := r.ReadAt(buf[read:], offset+int64(read))
		read += n
		if err != nil {
			if err == io.EOF && read == len(buf) {
				break
			}
			if err == io.EOF {
				return errors.Errorf("short read: got %d of %d bytes before EOF", read, len(buf))
			}
			return err
		}
	}
	return nil
}

func hexDigest(sum []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
