package journal

import (
	"testing"

	"vcs/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	j := New(db)
	defer j.Close()

	ops := []Op{OpInit, OpCommit, OpBranchCreate, OpCommit, OpMerge}
	for i, op := range ops {
		e, err := j.Record(Entry{Op: op, Branch: "master", Commit: i})
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Time.IsZero())
	}

	entries, err := j.List()
	require.NoError(t, err)
	require.Len(t, entries, len(ops))
	for i, e := range entries {
		assert.Equal(t, ops[i], e.Op, "entries come back in recording order")
		assert.Equal(t, i, e.Commit)
	}

	got, err := j.Get(entries[2].ID)
	require.NoError(t, err)
	assert.Equal(t, OpBranchCreate, got.Op)

	_, err = j.Get("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJournalOnDisk(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	_, err = j.Record(Entry{Op: OpInit, Branch: "master", Commit: 0, Author: "ada"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ada", entries[0].Author)
}

func TestJournalForget(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	j := New(db)
	defer j.Close()

	for _, e := range []Entry{
		{Op: OpInit, Branch: "master"},
		{Op: OpBranchCreate, Branch: "work", Commit: 0},
		{Op: OpCommit, Branch: "work", Commit: 1},
		{Op: OpCheckout, Branch: "master", Commit: 0},
	} {
		_, err := j.Record(e)
		require.NoError(t, err)
	}

	removed, err := j.Forget("work")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := j.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, OpInit, entries[0].Op)
	assert.Equal(t, OpCheckout, entries[1].Op)

	removed, err = j.Forget("work")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
