package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	vcserr "vcs/internal/errors"
	"vcs/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTestStore(t *testing.T) (*Store, string) {
	dir := t.TempDir()
	store, err := NewStore(StoreOptions{
		Root:     filepath.Join(dir, "objects"),
		ListPath: filepath.Join(dir, "objects_list"),
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return store, dir
}

// writeTracked writes body to a fresh file under dir and hashes it.
func writeTracked(t *testing.T, dir, logicalPath, body string) TrackedFile {
	location := filepath.Join(dir, "src", filepath.FromSlash(logicalPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(location), 0755))
	require.NoError(t, os.WriteFile(location, []byte(body), 0644))
	f, err := FromDisk(location, logicalPath)
	require.NoError(t, err)
	return f
}

func countObjects(t *testing.T, store *Store) int {
	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	return len(entries)
}

func TestStore(t *testing.T) {
	t.Run("identical content is stored once", func(t *testing.T) {
		store, dir := setupTestStore(t)
		f1 := writeTracked(t, dir, "a.txt", "same")
		f2 := writeTracked(t, dir, "b/c.txt", "same")

		s1, err := store.Add(f1)
		require.NoError(t, err)
		s2, err := store.Add(f2)
		require.NoError(t, err)

		assert.Equal(t, 1, countObjects(t, store))
		assert.Equal(t, 2, store.RefCount(f1.Hash))
		assert.Equal(t, s1.Location, s2.Location)
		assert.Equal(t, "b/c.txt", s2.Path)
		assert.True(t, s1.Equal(s2))

		data, err := s2.Read()
		require.NoError(t, err)
		assert.Equal(t, "same", string(data))
	})

	t.Run("last reference removes the physical copy", func(t *testing.T) {
		store, dir := setupTestStore(t)
		f := writeTracked(t, dir, "a.txt", "body")
		stored, err := store.Add(f)
		require.NoError(t, err)
		_, err = store.Add(f)
		require.NoError(t, err)

		require.NoError(t, store.Delete(f.Hash))
		assert.Equal(t, 1, store.RefCount(f.Hash))
		assert.FileExists(t, stored.Location)

		require.NoError(t, store.Delete(f.Hash))
		assert.Equal(t, 0, store.RefCount(f.Hash))
		assert.NoFileExists(t, stored.Location)
		assert.Equal(t, 0, store.Len())

		err = store.Delete(f.Hash)
		assert.True(t, errors.Is(err, vcserr.ErrNoSuchFile))
	})

	t.Run("get requires a stored hash", func(t *testing.T) {
		store, dir := setupTestStore(t)
		_, err := store.Get(utils.HashContent([]byte("nope")), "x")
		assert.True(t, errors.Is(err, vcserr.ErrNoSuchFile))

		f := writeTracked(t, dir, "a.txt", "yes")
		_, err = store.Add(f)
		require.NoError(t, err)
		got, err := store.Get(f.Hash, "renamed.txt")
		require.NoError(t, err)
		assert.Equal(t, "renamed.txt", got.Path)
		assert.Equal(t, 1, store.RefCount(f.Hash))
	})

	t.Run("rejects malformed hashes", func(t *testing.T) {
		store, dir := setupTestStore(t)
		f := writeTracked(t, dir, "a.txt", "x")
		f.Hash = "not-a-hash"
		_, err := store.Add(f)
		assert.Error(t, err)
	})

	t.Run("counters round trip", func(t *testing.T) {
		store, dir := setupTestStore(t)
		a := writeTracked(t, dir, "a", "one")
		b := writeTracked(t, dir, "b", "two")
		for _, f := range []TrackedFile{a, a, a, b} {
			_, err := store.Add(f)
			require.NoError(t, err)
		}
		require.NoError(t, store.WriteCounters())

		reopened, err := NewStore(StoreOptions{
			Root:     filepath.Join(dir, "objects"),
			ListPath: filepath.Join(dir, "objects_list"),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, reopened.RefCount(a.Hash))
		assert.Equal(t, 1, reopened.RefCount(b.Hash))
		assert.Equal(t, store.Hashes(), reopened.Hashes())
	})

	t.Run("counter without content is corrupt", func(t *testing.T) {
		store, dir := setupTestStore(t)
		f := writeTracked(t, dir, "a", "gone")
		stored, err := store.Add(f)
		require.NoError(t, err)
		require.NoError(t, store.WriteCounters())
		require.NoError(t, os.Remove(stored.Location))

		err = store.Load()
		assert.True(t, errors.Is(err, vcserr.ErrBadRepo))
	})

	t.Run("malformed counter list is corrupt", func(t *testing.T) {
		store, dir := setupTestStore(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "objects_list"), []byte("garbage\n"), 0644))
		assert.True(t, errors.Is(store.Load(), vcserr.ErrBadRepo))
	})

	t.Run("retain adopts present content", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(StoreOptions{Root: dir})
		require.NoError(t, err)
		assert.False(t, store.Persistent())

		hash := utils.HashContent([]byte("x"))
		assert.True(t, errors.Is(store.Retain(hash), vcserr.ErrNoSuchFile))

		require.NoError(t, os.WriteFile(filepath.Join(dir, hash), []byte("x"), 0644))
		require.NoError(t, store.Retain(hash))
		require.NoError(t, store.Retain(hash))
		assert.Equal(t, 2, store.RefCount(hash))
		require.NoError(t, store.WriteCounters())
	})
}
