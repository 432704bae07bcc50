package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCopyDirectorySkips(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "package.json"), "{}")
	writeFile(t, filepath.Join(src, "src", "index.js"), "console.log(1)")
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref: refs/heads/master")

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyDirectory(src, dst, ".git"))

	data, err := os.ReadFile(filepath.Join(dst, "src", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))
	assert.FileExists(t, filepath.Join(dst, "package.json"))
	assert.NoDirExists(t, filepath.Join(dst, ".git"))
}

func TestCopyDirectoryMissingSource(t *testing.T) {
	err := CopyDirectory(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}

func TestMoveToTrash(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "apps", "blog")
	writeFile(t, filepath.Join(app, "index.js"), "hello")
	trash := filepath.Join(root, "trash")
	now := time.UnixMilli(1700000000123)

	dest, err := MoveToTrash(trash, app, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(trash, "1700000000123_blog"), dest)
	assert.NoDirExists(t, app)

	data, err := os.ReadFile(filepath.Join(dest, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMoveToTrashMissingPath(t *testing.T) {
	dest, err := MoveToTrash(t.TempDir(), filepath.Join(t.TempDir(), "gone.log"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, dest)
}
