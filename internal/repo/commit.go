package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vcs/internal/content"
	vcserr "vcs/internal/errors"
	"vcs/internal/stage"
	"vcs/internal/workdir"
	"vcs/shared/utils"

	"go.uber.org/zap"
)

const (
	metadataFile  = "metadata"
	filesListFile = "files_list"
)

// Commit is an immutable snapshot of the staging zone. Commits are equal iff
// their numbers are.
type Commit struct {
	Number  int
	Created time.Time
	Branch  string
	Author  string
	Parent  int // -1 for the root commit
	Message string

	dir   string
	files *content.Index
}

// LogEntry summarises a commit for history listings.
type LogEntry struct {
	Number  int       `json:"number"`
	Created time.Time `json:"created"`
	Branch  string    `json:"branch"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
}

func (e LogEntry) String() string {
	subject, _, _ := strings.Cut(e.Message, "\n")
	return fmt.Sprintf("%d %s %s (%s) %s", e.Number, e.Created.Format(time.DateTime), e.Author, e.Branch, subject)
}

func (r *Repository) commitDir(n int) string {
	return r.path(commitsDir, strconv.Itoa(n))
}

// CreateCommit snapshots the staging zone as the next commit on the current
// branch, then advances the branch, the position and the commit counter. It
// requires the position to be at the branch head. On failure the partial
// commit directory is removed.
func CreateCommit(r *Repository, message string) (*Commit, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("commit message is required")
	}
	if info, err := os.Stat(r.path(commitsDir)); err != nil || !info.IsDir() {
		return nil, vcserr.BadRepo("repository directory %s is missing", commitsDir)
	}

	branchName, current, err := r.Position()
	if err != nil {
		return nil, err
	}
	branch, err := GetBranch(r, branchName)
	if err != nil {
		return nil, err
	}
	if head := branch.Head(); head != current {
		return nil, vcserr.BadPosition("commit %d is not the head of branch %s (head is %d)", current, branchName, head)
	}

	author, err := r.UserName()
	if err != nil {
		return nil, err
	}
	number, err := r.CommitsNumber()
	if err != nil {
		return nil, err
	}

	c := &Commit{
		Number:  number,
		Created: time.UnixMilli(time.Now().UnixMilli()),
		Branch:  branchName,
		Author:  author,
		Parent:  current,
		Message: message,
		dir:     r.commitDir(number),
	}
	if _, err := os.Stat(c.dir); err == nil {
		return nil, vcserr.BadRepo("commit directory %s already exists", c.dir)
	}

	if err := c.persist(r, branch); err != nil {
		c.rollback(r)
		return nil, err
	}

	r.commits.Add(c.Number, c)
	r.logger.Info("commit created",
		zap.Int("commit", c.Number),
		zap.String("branch", c.Branch),
		zap.Int("parent", c.Parent),
		zap.Int("files", c.files.Len()))
	return c.clone(), nil
}

// clone copies the commit's fields so callers never share the cached value.
// The content index is shared; it is never mutated while cached.
func (c *Commit) clone() *Commit {
	cp := *c
	return &cp
}

func (c *Commit) persist(r *Repository, branch *Branch) error {
	if err := os.Mkdir(c.dir, 0755); err != nil {
		return vcserr.FileSystem("creating commit directory", err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(c.dir, metadataFile), c.metadata()); err != nil {
		return vcserr.FileSystem("writing commit metadata", err)
	}

	c.files = content.NewIndex(filepath.Join(c.dir, filesListFile), r.store)
	for _, f := range r.stage.Files() {
		if _, err := c.files.Add(f); err != nil {
			return fmt.Errorf("storing commit content: %w", err)
		}
	}
	if err := c.files.WriteList(); err != nil {
		return fmt.Errorf("writing commit file list: %w", err)
	}
	if err := r.store.WriteCounters(); err != nil {
		return fmt.Errorf("writing content counters: %w", err)
	}

	if err := branch.AddCommit(c); err != nil {
		return err
	}
	if err := r.setPosition(branch.Name, c.Number); err != nil {
		return err
	}
	return r.UpdateCommitCounter()
}

func (c *Commit) rollback(r *Repository) {
	if c.files != nil {
		if err := c.files.Clear(); err != nil {
			r.logger.Warn("releasing partial commit content", zap.Int("commit", c.Number), zap.Error(err))
		}
		if err := r.store.WriteCounters(); err != nil {
			r.logger.Warn("restoring content counters", zap.Int("commit", c.Number), zap.Error(err))
		}
	}
	if err := os.RemoveAll(c.dir); err != nil {
		r.logger.Warn("removing partial commit", zap.Int("commit", c.Number), zap.Error(err))
	}
}

func (c *Commit) metadata() []byte {
	return []byte(fmt.Sprintf("%d\n%s\n%s\n%d\n%s\n",
		c.Created.UnixMilli(), c.Branch, c.Author, c.Parent, c.Message))
}

func parseMetadata(c *Commit, data []byte) error {
	fields := strings.SplitN(string(data), "\n", 5)
	if len(fields) != 5 {
		return fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	millis, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("creation time: %w", err)
	}
	parent, err := strconv.Atoi(fields[3])
	if err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	message := strings.TrimSuffix(fields[4], "\n")
	if fields[1] == "" || message == "" {
		return errors.New("empty branch or message")
	}

	c.Created = time.UnixMilli(millis)
	c.Branch = fields[1]
	c.Author = fields[2]
	c.Parent = parent
	c.Message = message
	return nil
}

// ReadCommit loads commit n without touching repository state.
func ReadCommit(r *Repository, n int) (*Commit, error) {
	if c, ok := r.commits.Get(n); ok {
		return c.clone(), nil
	}

	c := &Commit{Number: n, dir: r.commitDir(n)}
	if info, err := os.Stat(c.dir); n < 0 || err != nil || !info.IsDir() {
		return nil, vcserr.NoSuchCommit(n)
	}

	data, err := os.ReadFile(filepath.Join(c.dir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.BadRepo("commit %d has no metadata", n)
		}
		return nil, vcserr.FileSystem("reading commit metadata", err)
	}
	if err := parseMetadata(c, data); err != nil {
		return nil, vcserr.BadRepo("commit %d has malformed metadata: %v", n, err)
	}
	if c.Parent >= n || c.Parent < -1 {
		return nil, vcserr.BadRepo("commit %d has invalid parent %d", n, c.Parent)
	}

	c.files, err = content.LoadIndex(filepath.Join(c.dir, filesListFile), r.store)
	if err != nil {
		return nil, fmt.Errorf("loading commit %d: %w", n, err)
	}

	r.commits.Add(n, c)
	return c.clone(), nil
}

func (c *Commit) Equal(other *Commit) bool {
	return other != nil && c.Number == other.Number
}

func (c *Commit) Summary() LogEntry {
	return LogEntry{
		Number:  c.Number,
		Created: c.Created,
		Branch:  c.Branch,
		Author:  c.Author,
		Message: c.Message,
	}
}

func (c *Commit) Files() []content.TrackedFile {
	return c.files.Files()
}

// Map returns a copy of the commit's path to file mapping.
func (c *Commit) Map() map[string]content.TrackedFile {
	return c.files.Map()
}

func (c *Commit) File(logicalPath string) (content.TrackedFile, error) {
	return c.files.File(logicalPath)
}

func (c *Commit) Contains(logicalPath string) bool {
	return c.files.Contains(logicalPath)
}

// Pedigree returns the chain of commits from the root commit to c.
func (c *Commit) Pedigree(r *Repository) ([]*Commit, error) {
	chain := []*Commit{c}
	for cur := c; cur.Parent != -1; {
		parent, err := ReadCommit(r, cur.Parent)
		if err != nil {
			if errors.Is(err, vcserr.ErrNoSuchCommit) {
				return nil, vcserr.Corrupt(err, "commit %d has a missing parent %d", cur.Number, cur.Parent)
			}
			return nil, err
		}
		chain = append(chain, parent)
		cur = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Checkout copies every file of the commit into the working tree and stages
// it.
func (c *Commit) Checkout(work *workdir.Directory, zone *stage.Zone) error {
	for _, f := range c.files.Files() {
		if err := work.Add(f); err != nil {
			return err
		}
		if _, err := zone.AddFile(f); err != nil {
			return fmt.Errorf("staging %s: %w", f.Path, err)
		}
	}
	return nil
}

// RemoveFrom deletes the commit's files from the working tree. Files already
// gone are skipped.
func (c *Commit) RemoveFrom(work *workdir.Directory) error {
	for _, p := range c.files.Paths() {
		if err := work.Delete(p); err != nil && !errors.Is(err, vcserr.ErrNoSuchFile) {
			return err
		}
	}
	return nil
}

// ResetFile restores the committed version of logicalPath into the working
// tree and the stage, or drops the path from both when the commit does not
// track it.
func (c *Commit) ResetFile(logicalPath string, work *workdir.Directory, zone *stage.Zone) error {
	logicalPath, err := content.CheckPath(logicalPath)
	if err != nil {
		return err
	}
	if f, err := c.files.File(logicalPath); err == nil {
		if err := work.Add(f); err != nil {
			return err
		}
		_, err := zone.AddFile(f)
		return err
	}

	removed := false
	if err := work.Delete(logicalPath); err == nil {
		removed = true
	} else if !errors.Is(err, vcserr.ErrNoSuchFile) {
		return err
	}
	if err := zone.RemoveFile(logicalPath); err == nil {
		removed = true
	} else if !errors.Is(err, vcserr.ErrNoSuchFile) {
		return err
	}
	if !removed {
		return vcserr.NoSuchFile(logicalPath)
	}
	return nil
}

// delete releases the commit's content references and removes its
// directory. The caller persists the counters.
func (c *Commit) delete(r *Repository) error {
	if err := c.files.Clear(); err != nil {
		return fmt.Errorf("releasing commit %d content: %w", c.Number, err)
	}
	r.commits.Remove(c.Number)
	if err := os.RemoveAll(c.dir); err != nil {
		return vcserr.FileSystem("removing commit directory", err)
	}
	r.logger.Debug("deleted commit", zap.Int("commit", c.Number))
	return nil
}
