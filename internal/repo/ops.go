package repo

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"vcs/internal/archive"
	"vcs/internal/content"
	"vcs/internal/diff"
	vcserr "vcs/internal/errors"
	"vcs/internal/journal"
	"vcs/internal/workdir"
	shared "vcs/shared/types"

	"go.uber.org/zap"
)

const diffContext = 3

func under(logicalPath, dir string) bool {
	return dir == "." || logicalPath == dir || strings.HasPrefix(logicalPath, dir+"/")
}

// Add stages the named files, recursing into directories. Staged paths that
// no longer exist in the working tree are unstaged.
func (r *Repository) Add(paths ...string) error {
	if err := r.validate(); err != nil {
		return err
	}
	for _, p := range paths {
		logicalPath, err := content.CheckPath(p)
		if err != nil {
			return err
		}
		if err := r.addPath(logicalPath); err != nil {
			return err
		}
	}
	return r.save()
}

func (r *Repository) addPath(logicalPath string) error {
	found, err := r.work.Expand(logicalPath)
	if err != nil && !errors.Is(err, vcserr.ErrNoSuchFile) {
		return err
	}
	missing := err != nil

	for _, p := range found {
		f, err := r.work.File(p)
		if err != nil {
			return err
		}
		if _, err := r.stage.AddFile(f); err != nil {
			return fmt.Errorf("staging %s: %w", p, err)
		}
	}

	unstaged := 0
	for _, p := range r.stage.Paths() {
		if !under(p, logicalPath) || r.work.Contains(p) {
			continue
		}
		if err := r.stage.RemoveFile(p); err != nil {
			return err
		}
		unstaged++
	}

	if missing && unstaged == 0 {
		return vcserr.NoSuchFile(logicalPath)
	}
	return nil
}

// Remove unstages the named paths and deletes them from the working tree.
func (r *Repository) Remove(paths ...string) error {
	if err := r.validate(); err != nil {
		return err
	}
	for _, p := range paths {
		logicalPath, err := content.CheckPath(p)
		if err != nil {
			return err
		}
		if err := r.removePath(logicalPath); err != nil {
			return err
		}
	}
	return r.save()
}

func (r *Repository) removePath(logicalPath string) error {
	found, err := r.work.Expand(logicalPath)
	if err != nil && !errors.Is(err, vcserr.ErrNoSuchFile) {
		return err
	}

	targets := make(map[string]bool)
	for _, p := range found {
		targets[p] = true
	}
	for _, p := range r.stage.Paths() {
		if under(p, logicalPath) {
			targets[p] = true
		}
	}
	if len(targets) == 0 {
		return vcserr.NoSuchFile(logicalPath)
	}

	for p := range targets {
		if r.stage.Contains(p) {
			if err := r.stage.RemoveFile(p); err != nil {
				return err
			}
		}
		if r.work.Contains(p) {
			if err := r.work.Delete(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Status compares the working tree with the stage and the stage with the
// current commit.
func (r *Repository) Status() (*shared.Status, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}
	commit, err := r.CurrentCommit()
	if err != nil {
		return nil, err
	}
	working, err := r.work.List()
	if err != nil {
		return nil, err
	}

	status := &shared.Status{
		Branch:   branch.Name,
		Commit:   commit.Number,
		Detached: branch.Head() != commit.Number,
	}

	committed := commit.Map()
	staged := r.stage.Map()
	for p, s := range staged {
		c, ok := committed[p]
		switch {
		case !ok:
			status.Staged = append(status.Staged, shared.Change{Path: p, Type: shared.Added, Staged: true, NewHash: s.Hash})
		case !c.Equal(s):
			status.Staged = append(status.Staged, shared.Change{Path: p, Type: shared.Modified, Staged: true, OldHash: c.Hash, NewHash: s.Hash})
		}
	}
	for p, c := range committed {
		if _, ok := staged[p]; !ok {
			status.Staged = append(status.Staged, shared.Change{Path: p, Type: shared.Deleted, Staged: true, OldHash: c.Hash})
		}
	}

	inTree := make(map[string]content.TrackedFile, len(working))
	for _, f := range working {
		inTree[f.Path] = f
		if _, ok := staged[f.Path]; !ok {
			status.Untracked = append(status.Untracked, shared.Change{Path: f.Path, Type: shared.Untracked, NewHash: f.Hash})
		}
	}
	for p, s := range staged {
		w, ok := inTree[p]
		if !ok {
			// staged files may be ignored yet present
			if w, err = r.work.File(p); err != nil {
				if !errors.Is(err, vcserr.ErrNoSuchFile) {
					return nil, err
				}
				status.Unstaged = append(status.Unstaged, shared.Change{Path: p, Type: shared.Deleted, OldHash: s.Hash})
				continue
			}
		}
		if !w.Equal(s) {
			status.Unstaged = append(status.Unstaged, shared.Change{Path: p, Type: shared.Modified, OldHash: s.Hash, NewHash: w.Hash})
		}
	}

	for _, changes := range [][]shared.Change{status.Staged, status.Unstaged, status.Untracked} {
		sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	}
	return status, nil
}

// Commit records the staging zone as a new commit on the current branch.
func (r *Repository) Commit(message string) (*Commit, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.stage.Empty() {
		return nil, vcserr.NothingToCommit()
	}

	c, err := CreateCommit(r, message)
	if err != nil {
		return nil, err
	}
	r.record(journal.Entry{Op: journal.OpCommit, Branch: c.Branch, Commit: c.Number, Message: c.Message})
	return c, nil
}

// Reset restores logicalPath to its state in the current commit, in both the
// working tree and the stage.
func (r *Repository) Reset(logicalPath string) error {
	if err := r.validate(); err != nil {
		return err
	}
	c, err := r.CurrentCommit()
	if err != nil {
		return err
	}
	if err := c.ResetFile(logicalPath, r.work, r.stage); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		return err
	}
	r.record(journal.Entry{Op: journal.OpReset, Branch: c.Branch, Commit: c.Number, Message: content.CleanPath(logicalPath)})
	return nil
}

// Log lists the commits of the current branch up to the current position.
func (r *Repository) Log() ([]LogEntry, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	branch, err := r.CurrentBranch()
	if err != nil {
		return nil, err
	}
	entries, err := branch.Log(r)
	if err != nil {
		return nil, err
	}

	cur, err := r.CurrentCommitNumber()
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if e.Number == cur {
			return entries[:i+1], nil
		}
	}
	return entries, nil
}

// History lists the pedigree of the current commit, newest first.
func (r *Repository) History() ([]LogEntry, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	c, err := r.CurrentCommit()
	if err != nil {
		return nil, err
	}
	chain, err := c.Pedigree(r)
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		entries = append(entries, chain[i].Summary())
	}
	return entries, nil
}

// NewBranch creates branch name at the current commit and switches to it.
func (r *Repository) NewBranch(name string) (*Branch, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	cur, err := r.CurrentCommitNumber()
	if err != nil {
		return nil, err
	}
	b, err := CreateBranch(r, name, cur)
	if err != nil {
		return nil, err
	}
	r.record(journal.Entry{Op: journal.OpBranchCreate, Branch: name, Commit: cur})
	return b, nil
}

func (r *Repository) DeleteBranch(name string) error {
	if err := r.validate(); err != nil {
		return err
	}
	b, err := GetBranch(r, name)
	if err != nil {
		return err
	}
	if err := b.Delete(r); err != nil {
		return err
	}
	if r.journal != nil {
		if n, err := r.journal.Forget(name); err != nil {
			r.logger.Warn("pruning journal", zap.String("branch", name), zap.Error(err))
		} else {
			r.logger.Debug("pruned journal", zap.String("branch", name), zap.Int("entries", n))
		}
	}
	r.record(journal.Entry{Op: journal.OpBranchDelete, Branch: name, Commit: b.Head()})
	return nil
}

// CheckoutBranch switches to the head of branch name.
func (r *Repository) CheckoutBranch(name string) error {
	if err := r.validate(); err != nil {
		return err
	}
	b, err := GetBranch(r, name)
	if err != nil {
		return err
	}
	if _, err := r.checkout(b.Head()); err != nil {
		return err
	}
	if err := r.setPosition(b.Name, b.Head()); err != nil {
		return err
	}

	r.logger.Info("checked out branch", zap.String("branch", name), zap.Int("commit", b.Head()))
	r.record(journal.Entry{Op: journal.OpCheckout, Branch: name, Commit: b.Head()})
	return nil
}

// Clean deletes untracked files from the working tree and returns their
// paths. Ignored files and the ignore file itself are kept.
func (r *Repository) Clean() ([]string, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	files, err := r.work.List()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, f := range files {
		if f.Path == workdir.IgnoreFile || r.stage.Contains(f.Path) {
			continue
		}
		if err := r.work.Delete(f.Path); err != nil {
			return removed, err
		}
		removed = append(removed, f.Path)
	}
	if len(removed) > 0 {
		r.logger.Info("cleaned working directory", zap.Int("files", len(removed)))
	}
	return removed, nil
}

// Ignore adds logicalPath to the ignore file.
func (r *Repository) Ignore(logicalPath string) error {
	if err := r.validate(); err != nil {
		return err
	}
	return r.work.AddIgnore(logicalPath)
}

// Diff compares the current commit's version of logicalPath with the
// working file. Either side may be absent, but not both.
func (r *Repository) Diff(logicalPath string) (*diff.Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	logicalPath, err := content.CheckPath(logicalPath)
	if err != nil {
		return nil, err
	}
	c, err := r.CurrentCommit()
	if err != nil {
		return nil, err
	}

	var before, after []byte
	found := false
	if f, err := c.File(logicalPath); err == nil {
		if before, err = f.Read(); err != nil {
			return nil, vcserr.FileSystem("reading committed file", err)
		}
		found = true
	}
	if f, err := r.work.File(logicalPath); err == nil {
		if after, err = f.Read(); err != nil {
			return nil, vcserr.FileSystem("reading working file", err)
		}
		found = true
	} else if !errors.Is(err, vcserr.ErrNoSuchFile) {
		return nil, err
	}
	if !found {
		return nil, vcserr.NoSuchFile(logicalPath)
	}

	return diff.NewEngine(diffContext).Diff(before, after), nil
}

// Archive writes commit n to w as a zstd-compressed tar stream.
func (r *Repository) Archive(n int, w io.Writer) error {
	if err := r.validate(); err != nil {
		return err
	}
	c, err := ReadCommit(r, n)
	if err != nil {
		return err
	}
	return archive.Write(w, c.Files(), archive.Options{
		Level:   r.cfg.ArchiveLevel,
		ModTime: c.Created,
	})
}

// Journal returns the recorded operations, oldest first.
func (r *Repository) Journal() ([]journal.Entry, error) {
	if r.journal == nil {
		return nil, fmt.Errorf("journal is not available")
	}
	return r.journal.List()
}

// JournalEntry returns the recorded operation with the given ID.
func (r *Repository) JournalEntry(id string) (*journal.Entry, error) {
	if r.journal == nil {
		return nil, fmt.Errorf("journal is not available")
	}
	return r.journal.Get(id)
}
