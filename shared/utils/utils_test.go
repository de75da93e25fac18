package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashing(t *testing.T) {
	// sha1("abc")
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", HashContent([]byte("abc")))

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	hash, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashContent([]byte("abc")), hash)
	assert.True(t, IsHash(hash))
	assert.False(t, IsHash("abc"))
	assert.False(t, IsHash("zz993e364706816aba3e25717850c26c9cd0d89d"))
}

func TestLineFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list")

	require.NoError(t, WriteLines(path, []string{"a 1", "b c 2"}))
	require.NoError(t, AppendLine(path, "d 3"))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a 1", "b c 2", "d 3"}, lines)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not linger")

	_, err = ReadLines(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "nested", "deeper", "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestSplitLast(t *testing.T) {
	left, right, ok := SplitLast("dir/my file.txt abcd")
	require.True(t, ok)
	assert.Equal(t, "dir/my file.txt", left)
	assert.Equal(t, "abcd", right)

	_, _, ok = SplitLast("nospace")
	assert.False(t, ok)
	_, _, ok = SplitLast("trailing ")
	assert.False(t, ok)
}
