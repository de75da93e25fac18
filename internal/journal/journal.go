// Package journal records the operations applied to a repository, in order,
// in a badger database inside the repository directory.
package journal

import (
	"fmt"
	"time"

	"vcs/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Op names a recorded operation.
type Op string

const (
	OpInit         Op = "init"
	OpCommit       Op = "commit"
	OpCheckout     Op = "checkout"
	OpBranchCreate Op = "branch-create"
	OpBranchDelete Op = "branch-delete"
	OpMerge        Op = "merge"
	OpReset        Op = "reset"
)

// Entry is one journal record. IDs are time-ordered, so key order is
// chronological.
type Entry struct {
	ID      string    `json:"id"`
	Op      Op        `json:"op"`
	Branch  string    `json:"branch"`
	Commit  int       `json:"commit"`
	Author  string    `json:"author,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

func (e *Entry) GetID() string {
	return e.ID
}

type Journal struct {
	db    *badger.DB
	store *storage.BadgerStore
}

// Open opens the journal database in dir.
func Open(dir string) (*Journal, error) {
	db, err := storage.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return New(db), nil
}

// New wraps an already open database.
func New(db *badger.DB) *Journal {
	return &Journal{
		db:    db,
		store: storage.NewBadgerStore(db, "journal"),
	}
}

// Record appends an entry, filling in its ID and time.
func (j *Journal) Record(e Entry) (*Entry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating entry id: %w", err)
	}
	e.ID = id.String()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	if err := j.store.Create(&e); err != nil {
		return nil, fmt.Errorf("recording %s: %w", e.Op, err)
	}
	return &e, nil
}

// Get returns the entry with the given ID.
func (j *Journal) Get(id string) (*Entry, error) {
	var e Entry
	if err := j.store.Get(id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns every entry, oldest first.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry
	if err := j.store.List(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Forget deletes every entry recorded against branch and returns how many
// were removed.
func (j *Journal) Forget(branch string) (int, error) {
	entries, err := j.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.Branch != branch {
			continue
		}
		if err := j.store.Delete(e.ID); err != nil {
			return removed, fmt.Errorf("forgetting entry %s: %w", e.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
