package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvislabs/jarvis/internal/toolproc"
)

func call(t *testing.T, handler toolproc.Handler, params map[string]any) (any, error) {
	t.Helper()
	return handler(toolproc.Request{Params: params})
}

func TestWriteThenRead(t *testing.T) {
	t.Setenv("JARVIS_FILE_ROOT", t.TempDir())

	out, err := call(t, writeFile, map[string]any{"path": "notes/hello.txt", "content": "hi there"})
	require.NoError(t, err)
	assert.Equal(t, 8, out.(writeOutcome).Written)

	read, err := call(t, readFile, map[string]any{"path": "notes/hello.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", read.(fileContent).Content)
}

func TestListDirectory(t *testing.T) {
	root := t.TempDir()
	t.Setenv("JARVIS_FILE_ROOT", root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	out, err := call(t, listDirectory, map[string]any{"path": "."})
	require.NoError(t, err)

	listing := out.(dirListing)
	require.Len(t, listing.Entries, 3)
	assert.Equal(t, "a.txt", listing.Entries[0].Name)
	assert.True(t, listing.Entries[2].IsDir)
}

func TestEscapeOutsideRootRejected(t *testing.T) {
	t.Setenv("JARVIS_FILE_ROOT", t.TempDir())

	_, err := call(t, readFile, map[string]any{"path": "../../etc/passwd"})
	assert.Error(t, err)

	_, err = call(t, writeFile, map[string]any{"path": "/etc/evil", "content": "x"})
	assert.Error(t, err)
}

func TestDeleteFile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("JARVIS_FILE_ROOT", root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "gone.txt"), []byte("x"), 0o644))

	_, err := call(t, deleteFile, map[string]any{"path": "gone.txt"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "gone.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileInfo(t *testing.T) {
	root := t.TempDir()
	t.Setenv("JARVIS_FILE_ROOT", root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("abc"), 0o644))

	out, err := call(t, fileInfo, map[string]any{"path": "f.txt"})
	require.NoError(t, err)

	info := out.(fileInfoResult)
	assert.Equal(t, int64(3), info.Size)
	assert.False(t, info.IsDir)
}

func TestMissingPath(t *testing.T) {
	t.Setenv("JARVIS_FILE_ROOT", t.TempDir())
	_, err := call(t, readFile, map[string]any{})
	assert.Error(t, err)
}
