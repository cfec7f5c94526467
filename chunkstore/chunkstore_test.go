package chunkstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeclutter(t *testing.T) {
	hash := "abcdef0123456789"
	require.Equal(t, hash, Declutter(0, hash))
	require.Equal(t, filepath.Join("a", "abcdef0123456789"), Declutter(1, hash))
	require.Equal(t, filepath.Join("a", "b", "c", hash), Declutter(3, hash))
}

func TestChunkStore_Save_AtMostOnce(t *testing.T) {
	root := t.TempDir()
	s := New(root, 0)

	require.NoError(t, s.Save("h1", []byte("hello")))
	require.True(t, s.Exists("h1"))

	// Second write with different bytes must not overwrite (G1 presence check).
	require.NoError(t, s.Save("h1", []byte("world")))
	data, err := os.ReadFile(s.Path("h1"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestChunkStore_Save_Declutter3(t *testing.T) {
	root := t.TempDir()
	s := New(root, 3)
	require.NoError(t, s.Save("deadbeef", []byte("x")))

	expected := filepath.Join(root, "data", "d", "e", "a", "deadbeef")
	_, err := os.Stat(expected)
	require.NoError(t, err)
}

func TestChunkStore_SaveFrom(t *testing.T) {
	root := t.TempDir()
	srcPath := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(srcPath, []byte("0123456789"), 0o644))

	s := New(root, 0)
	require.NoError(t, s.SaveFrom("h", srcPath, 2, 5))

	data, err := os.ReadFile(s.Path("h"))
	require.NoError(t, err)
	require.Equal(t, "23456", string(data))
}

func TestChunkStore_SaveFrom_ZeroSize(t *testing.T) {
	root := t.TempDir()
	srcPath := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.WriteFile(srcPath, nil, 0o644))

	s := New(root, 0)
	require.NoError(t, s.SaveFrom("empty", srcPath, 0, 0))
	data, err := os.ReadFile(s.Path("empty"))
	require.NoError(t, err)
	require.Empty(t, data)
}
