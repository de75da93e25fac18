package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	vcserr "vcs/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	t.Run("add replaces entries for the same path", func(t *testing.T) {
		store, dir := setupTestStore(t)
		idx := NewIndex(filepath.Join(dir, "list"), store)

		v1 := writeTracked(t, dir, "a.txt", "v1")
		_, err := idx.Add(v1)
		require.NoError(t, err)

		v2 := writeTracked(t, dir, "a.txt", "v2")
		require.NoError(t, idx.Delete("a.txt"))
		_, err = idx.Add(v2)
		require.NoError(t, err)

		got, err := idx.File("a.txt")
		require.NoError(t, err)
		assert.Equal(t, v2.Hash, got.Hash)
		assert.Equal(t, 0, store.RefCount(v1.Hash))
		assert.Equal(t, 1, idx.Len())
	})

	t.Run("delete of the only reference removes content", func(t *testing.T) {
		store, dir := setupTestStore(t)
		idx := NewIndex(filepath.Join(dir, "list"), store)
		other := NewIndex(filepath.Join(dir, "other"), store)

		f := writeTracked(t, dir, "shared.txt", "shared")
		stored, err := idx.Add(f)
		require.NoError(t, err)
		_, err = other.Add(f)
		require.NoError(t, err)

		require.NoError(t, idx.Delete("shared.txt"))
		assert.FileExists(t, stored.Location, "still referenced by the other index")
		require.NoError(t, other.Delete("./shared.txt"))
		assert.NoFileExists(t, stored.Location)

		assert.True(t, errors.Is(idx.Delete("shared.txt"), vcserr.ErrNoSuchFile))
		_, err = idx.File("shared.txt")
		assert.True(t, errors.Is(err, vcserr.ErrNoSuchFile))
	})

	t.Run("write and load round trip", func(t *testing.T) {
		store, dir := setupTestStore(t)
		listPath := filepath.Join(dir, "list")
		idx := NewIndex(listPath, store)
		for p, body := range map[string]string{"b.txt": "b", "dir/a file.txt": "a", "c": "b"} {
			_, err := idx.Add(writeTracked(t, dir, p, body))
			require.NoError(t, err)
		}
		require.NoError(t, idx.WriteList())

		data, err := os.ReadFile(listPath)
		require.NoError(t, err)
		lines := []string{}
		for _, f := range idx.Files() {
			lines = append(lines, f.Path+" "+f.Hash)
		}
		assert.Equal(t, strings.Join(lines, "\n")+"\n", string(data))
		assert.Equal(t, []string{"b.txt", "c", "dir/a file.txt"}, idx.Paths())

		loaded, err := LoadIndex(listPath, store)
		require.NoError(t, err)
		assert.Equal(t, idx.Paths(), loaded.Paths())
		for _, p := range idx.Paths() {
			want, _ := idx.File(p)
			got, err := loaded.File(p)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		assert.Equal(t, 2, store.RefCount(idx.files["c"].Hash), "loading does not take references")
	})

	t.Run("dangling hash is corrupt", func(t *testing.T) {
		store, dir := setupTestStore(t)
		listPath := filepath.Join(dir, "list")
		idx := NewIndex(listPath, store)
		f := writeTracked(t, dir, "a.txt", "a")
		_, err := idx.Add(f)
		require.NoError(t, err)
		require.NoError(t, idx.WriteList())
		require.NoError(t, store.Delete(f.Hash))

		_, err = LoadIndex(listPath, store)
		assert.True(t, errors.Is(err, vcserr.ErrBadRepo))
	})

	t.Run("missing list is corrupt", func(t *testing.T) {
		store, dir := setupTestStore(t)
		_, err := LoadIndex(filepath.Join(dir, "nope"), store)
		assert.True(t, errors.Is(err, vcserr.ErrBadRepo))
	})

	t.Run("paths outside the tree are rejected", func(t *testing.T) {
		store, dir := setupTestStore(t)
		idx := NewIndex(filepath.Join(dir, "list"), store)
		f := writeTracked(t, dir, "a.txt", "a")
		f.Path = "../a.txt"
		_, err := idx.Add(f)
		assert.True(t, errors.Is(err, ErrOutsideTree))
		assert.Equal(t, 0, idx.Len())
		assert.Equal(t, 0, store.Len())
	})

	t.Run("list naming a path outside the tree is corrupt", func(t *testing.T) {
		store, dir := setupTestStore(t)
		listPath := filepath.Join(dir, "list")
		idx := NewIndex(listPath, store)
		f := writeTracked(t, dir, "a.txt", "a")
		_, err := idx.Add(f)
		require.NoError(t, err)
		require.NoError(t, idx.WriteList())

		require.NoError(t, os.WriteFile(listPath, []byte("../../escape.txt "+f.Hash+"\n"), 0644))
		_, err = LoadIndex(listPath, store)
		assert.True(t, errors.Is(err, vcserr.ErrBadRepo))
	})

	t.Run("clear releases everything", func(t *testing.T) {
		store, dir := setupTestStore(t)
		idx := NewIndex(filepath.Join(dir, "list"), store)
		for _, p := range []string{"x", "y", "z"} {
			_, err := idx.Add(writeTracked(t, dir, p, p))
			require.NoError(t, err)
		}
		require.NoError(t, idx.Clear())
		assert.Equal(t, 0, idx.Len())
		assert.Equal(t, 0, store.Len())
	})
}
