package repo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	vcserr "vcs/internal/errors"
	"vcs/shared/utils"

	"go.uber.org/zap"
)

// Branch is an append-only list of commit numbers. The first entry is the
// commit the branch was created from; the last is its head.
type Branch struct {
	Name    string
	path    string
	commits []int
}

func validBranchName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, "/\\ \t\r\n")
}

// CreateBranch records a new branch starting at commit start and makes it the
// current branch.
func CreateBranch(r *Repository, name string, start int) (*Branch, error) {
	if !validBranchName(name) {
		return nil, fmt.Errorf("invalid branch name %q", name)
	}

	b := &Branch{
		Name:    name,
		path:    r.path(branchesDir, name),
		commits: []int{start},
	}
	if _, err := os.Stat(b.path); err == nil {
		return nil, vcserr.BranchAlreadyExists(name)
	} else if !os.IsNotExist(err) {
		return nil, vcserr.FileSystem("inspecting branch", err)
	}

	if err := utils.WriteLines(b.path, []string{strconv.Itoa(start)}); err != nil {
		return nil, vcserr.FileSystem("writing branch", err)
	}
	if err := r.SetCurrentBranch(name); err != nil {
		return nil, err
	}

	r.logger.Info("branch created", zap.String("branch", name), zap.Int("start", start))
	return b, nil
}

// GetBranch loads the branch called name.
func GetBranch(r *Repository, name string) (*Branch, error) {
	if !validBranchName(name) {
		return nil, vcserr.NoSuchBranch(name)
	}

	b := &Branch{Name: name, path: r.path(branchesDir, name)}
	lines, err := utils.ReadLines(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.NoSuchBranch(name)
		}
		return nil, vcserr.FileSystem("reading branch", err)
	}

	for _, line := range lines {
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, vcserr.BadRepo("branch %s has malformed entry %q", name, line)
		}
		b.commits = append(b.commits, n)
	}
	return b, nil
}

// AddCommit appends c to the branch.
func (b *Branch) AddCommit(c *Commit) error {
	if err := utils.AppendLine(b.path, strconv.Itoa(c.Number)); err != nil {
		return vcserr.FileSystem("appending to branch", err)
	}
	b.commits = append(b.commits, c.Number)
	return nil
}

// Head is the last commit number on the branch, or -1 when it has none.
func (b *Branch) Head() int {
	if len(b.commits) == 0 {
		return -1
	}
	return b.commits[len(b.commits)-1]
}

// Start is the commit the branch was created from.
func (b *Branch) Start() int {
	if len(b.commits) == 0 {
		return -1
	}
	return b.commits[0]
}

// Commits returns the numbers of the commits made on the branch, oldest
// first, excluding the creation point.
func (b *Branch) Commits() []int {
	if len(b.commits) < 2 {
		return nil
	}
	return append([]int(nil), b.commits[1:]...)
}

// Log summarises every commit made on the branch, oldest first.
func (b *Branch) Log(r *Repository) ([]LogEntry, error) {
	var entries []LogEntry
	for _, n := range b.Commits() {
		c, err := ReadCommit(r, n)
		if err != nil {
			return nil, fmt.Errorf("reading log of %s: %w", b.Name, err)
		}
		entries = append(entries, c.Summary())
	}
	return entries, nil
}

// Delete removes the branch and every commit made on it. The default branch
// and the current branch cannot be deleted, nor can a branch another branch
// was created from.
func (b *Branch) Delete(r *Repository) error {
	defaultBranch, err := r.DefaultBranch()
	if err != nil {
		return err
	}
	if b.Name == defaultBranch {
		return vcserr.BadPosition("default branch %s cannot be deleted", b.Name)
	}
	current, err := r.CurrentBranchName()
	if err != nil {
		return err
	}
	if current == b.Name {
		return vcserr.BadPosition("branch %s is checked out", b.Name)
	}
	if err := b.checkNoDescendants(r); err != nil {
		return err
	}

	for _, n := range b.Commits() {
		c, err := ReadCommit(r, n)
		if err != nil {
			return err
		}
		if err := c.delete(r); err != nil {
			return err
		}
	}
	if err := r.store.WriteCounters(); err != nil {
		return fmt.Errorf("writing content counters: %w", err)
	}
	if err := os.Remove(b.path); err != nil {
		return vcserr.FileSystem("removing branch", err)
	}

	r.logger.Info("branch deleted", zap.String("branch", b.Name), zap.Int("commits", len(b.Commits())))
	return nil
}

func (b *Branch) checkNoDescendants(r *Repository) error {
	own := make(map[int]bool)
	for _, n := range b.Commits() {
		own[n] = true
	}

	names, err := r.Branches()
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == b.Name {
			continue
		}
		other, err := GetBranch(r, name)
		if err != nil {
			return err
		}
		if own[other.Start()] {
			return vcserr.BadPosition("branch %s was created from commit %d of %s", name, other.Start(), b.Name)
		}
	}
	return nil
}
