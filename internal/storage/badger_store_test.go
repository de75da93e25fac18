package storage

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r *record) GetID() string { return r.ID }

func setupTestDB(t *testing.T) *badger.DB {
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "rec")
	other := NewBadgerStore(db, "other")

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, store.Create(&record{ID: "b", Name: "second"}))
		require.NoError(t, store.Create(&record{ID: "a", Name: "first"}))
		require.NoError(t, other.Create(&record{ID: "a", Name: "elsewhere"}))

		assert.Error(t, store.Create(&record{ID: "a"}), "duplicate")
		assert.Error(t, store.Create(&record{}), "empty id")
	})

	t.Run("Get", func(t *testing.T) {
		var r record
		require.NoError(t, store.Get("a", &r))
		assert.Equal(t, "first", r.Name)

		err := store.Get("missing", &r)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("List", func(t *testing.T) {
		var list []record
		require.NoError(t, store.List(&list))
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("a"))
		assert.True(t, errors.Is(store.Delete("a"), ErrNotFound))

		var r record
		require.NoError(t, other.Get("a", &r))
		assert.Equal(t, "elsewhere", r.Name)
	})

	t.Run("Open on disk", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, NewBadgerStore(db, "rec").Create(&record{ID: "x"}))
		require.NoError(t, db.Close())

		db, err = Open(dir)
		require.NoError(t, err)
		defer db.Close()
		var r record
		require.NoError(t, NewBadgerStore(db, "rec").Get("x", &r))
	})
}
