package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_ReadDirAndWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	osfs := OSFileSystem{}
	require.NoError(t, osfs.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, osfs.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, osfs.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	entries, err := osfs.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)

	assert.True(t, osfs.Exists(filepath.Join(dir, "a.txt")))
	assert.False(t, osfs.Exists(filepath.Join(dir, "missing.txt")))

	data, err := osfs.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/frames/f0.png", []byte("hello"), 0o644))

	data, err := mfs.ReadFile("/frames/f0.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Returned slices are copies.
	data[0] = 'X'
	again, _ := mfs.ReadFile("/frames/f0.png")
	assert.Equal(t, "hello", string(again))

	assert.True(t, mfs.Exists("/frames"), "parent directory implied by write")
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	w, err := mfs.Create("/out/payload.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := mfs.Open("/out/payload.bin")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
}

func TestMemoryFileSystem_ReadDirSorted(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/in/frame_000002.png", nil, 0o644))
	require.NoError(t, mfs.WriteFile("/in/frame_000000.png", nil, 0o644))
	require.NoError(t, mfs.WriteFile("/in/nested/x.png", nil, 0o644))
	require.NoError(t, mfs.WriteFile("/other/y.png", nil, 0o644))

	entries, err := mfs.ReadDir("/in")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "frame_000000.png", entries[0].Name())
	assert.Equal(t, "frame_000002.png", entries[1].Name())
	assert.Equal(t, "nested", entries[2].Name())
	assert.True(t, entries[2].IsDir())

	_, err = mfs.ReadDir("/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMemoryFileSystem_StatAndMissing(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/a/b", 0o755))

	info, err := mfs.Stat("/a")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = mfs.Stat("/a/c")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = mfs.Open("/a/c")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = mfs.ReadFile("/a/c")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileSystemInterface(t *testing.T) {
	t.Parallel()

	var _ FileSystem = OSFileSystem{}
	var _ FileSystem = NewMemoryFileSystem()
}
