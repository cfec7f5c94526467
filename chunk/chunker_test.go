package chunk

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	deduper "github.com/FloGa/crazy-deduper"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestChunker_EmptyFile(t *testing.T) {
	path := writeTempFile(t, nil)
	c := Chunker{Algorithm: deduper.SHA256}
	refs, err := c.Chunk(context.Background(), path, 0)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, uint64(0), refs[0].Start)
	require.Equal(t, uint64(0), refs[0].Size)

	empty := sha256.Sum256(nil)
	require.Equal(t, fmt.Sprintf("%x", empty), refs[0].Hash)
}

func TestChunker_ExactMultiple(t *testing.T) {
	data := make([]byte, Size*2)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeTempFile(t, data)

	c := Chunker{Algorithm: deduper.SHA256}
	refs, err := c.Chunk(context.Background(), path, int64(len(data)))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	require.Equal(t, uint64(0), refs[0].Start)
	require.Equal(t, uint64(Size), refs[0].Size)
	require.Equal(t, uint64(Size), refs[1].Start)
	require.Equal(t, uint64(Size), refs[1].Size)

	first := sha256.Sum256(data[:Size])
	require.Equal(t, fmt.Sprintf("%x", first), refs[0].Hash)
}

func TestChunker_ShortTail(t *testing.T) {
	data := make([]byte, Size+100)
	path := writeTempFile(t, data)

	c := Chunker{Algorithm: deduper.SHA1}
	refs, err := c.Chunk(context.Background(), path, int64(len(data)))
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, uint64(Size), refs[0].Size)
	require.Equal(t, uint64(100), refs[1].Size)
	require.Equal(t, uint64(Size), refs[1].Start)
}

func TestChunker_Deterministic(t *testing.T) {
	data := make([]byte, Size+1)
	path := writeTempFile(t, data)

	c := Chunker{Algorithm: deduper.SHA256}
	a, err := c.Chunk(context.Background(), path, int64(len(data)))
	require.NoError(t, err)
	b, err := c.Chunk(context.Background(), path, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, a, b)
}
