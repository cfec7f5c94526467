package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FloGa/crazy-deduper/catalog"
	"github.com/FloGa/crazy-deduper/catalogcodec"
	"github.com/FloGa/crazy-deduper/chunk"
)

func TestScan_FreshSourceTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("world"), 0o644))

	res, err := Scan(Options{Source: src, Algorithm: "sha256"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Catalog.Len())
	require.Equal(t, "", res.WritePath)

	r, ok := res.Catalog.Get("a.txt")
	require.True(t, ok)
	require.False(t, r.HasChunks())
	require.Equal(t, src, r.Base)
}

func TestScan_ReusesMatchingCachedRecord(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	cacheFile := filepath.Join(t.TempDir(), "cat.json")
	c := catalog.New("sha256")
	r := catalog.NewFileRecord("a.txt", uint64(info.Size()), info.ModTime(), "")
	r.SetChunks([]chunk.Ref{{Start: 0, Size: 5, Hash: "cached-hash"}})
	c.Insert(r)
	require.NoError(t, catalogcodec.Save(cacheFile, c))

	res, err := Scan(Options{Source: src, CacheFiles: []string{cacheFile}, Algorithm: "sha256"})
	require.NoError(t, err)

	got, ok := res.Catalog.Get("a.txt")
	require.True(t, ok)
	require.True(t, got.HasChunks())
	refs, fresh, err := got.Chunks(func() ([]chunk.Ref, error) { return nil, nil })
	require.NoError(t, err)
	require.False(t, fresh)
	require.Equal(t, "cached-hash", refs[0].Hash)
	require.Equal(t, cacheFile, res.WritePath)
}

func TestScan_ReplacesStaleCachedRecord(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	cacheFile := filepath.Join(t.TempDir(), "cat.json")
	c := catalog.New("sha256")
	r := catalog.NewFileRecord("a.txt", 999, time.Unix(1, 0), "")
	r.SetChunks([]chunk.Ref{{Start: 0, Size: 999, Hash: "stale-hash"}})
	c.Insert(r)
	require.NoError(t, catalogcodec.Save(cacheFile, c))

	res, err := Scan(Options{Source: src, CacheFiles: []string{cacheFile}, Algorithm: "sha256"})
	require.NoError(t, err)

	got, ok := res.Catalog.Get("a.txt")
	require.True(t, ok)
	require.False(t, got.HasChunks())
	require.Equal(t, uint64(5), got.Size)
}

func TestScan_DropsVanishedRecords(t *testing.T) {
	src := t.TempDir()

	cacheFile := filepath.Join(t.TempDir(), "cat.json")
	c := catalog.New("sha256")
	c.Insert(catalog.NewFileRecord("gone.txt", 5, time.Unix(1, 0), ""))
	require.NoError(t, catalogcodec.Save(cacheFile, c))

	res, err := Scan(Options{Source: src, CacheFiles: []string{cacheFile}, Algorithm: "sha256"})
	require.NoError(t, err)
	require.False(t, res.Catalog.Contains("gone.txt"))
}

func TestScan_MultipleCacheFiles_FirstListedWins(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	mostAccurate := filepath.Join(t.TempDir(), "accurate.json")
	c1 := catalog.New("sha256")
	r1 := catalog.NewFileRecord("a.txt", uint64(info.Size()), info.ModTime(), "")
	r1.SetChunks([]chunk.Ref{{Start: 0, Size: 5, Hash: "accurate-hash"}})
	c1.Insert(r1)
	require.NoError(t, catalogcodec.Save(mostAccurate, c1))

	stale := filepath.Join(t.TempDir(), "stale.json")
	c2 := catalog.New("sha256")
	r2 := catalog.NewFileRecord("a.txt", uint64(info.Size()), info.ModTime(), "")
	r2.SetChunks([]chunk.Ref{{Start: 0, Size: 5, Hash: "stale-hash"}})
	c2.Insert(r2)
	require.NoError(t, catalogcodec.Save(stale, c2))

	res, err := Scan(Options{
		Source:     src,
		CacheFiles: []string{mostAccurate, stale},
		Algorithm:  "sha256",
	})
	require.NoError(t, err)

	got, ok := res.Catalog.Get("a.txt")
	require.True(t, ok)
	refs, _, err := got.Chunks(func() ([]chunk.Ref, error) { return nil, nil })
	require.NoError(t, err)
	require.Equal(t, "accurate-hash", refs[0].Hash)
	require.Equal(t, mostAccurate, res.WritePath)
}

func TestScan_MinDepthOne_SkipsRootItself(t *testing.T) {
	src := t.TempDir()
	res, err := Scan(Options{Source: src, Algorithm: "sha1"})
	require.NoError(t, err)
	require.Equal(t, 0, res.Catalog.Len())
}
