// Package repo is the repository handle. It owns the on-disk layout under
// the repository directory, the current position, and coordinates the content
// store, the staging zone and the working directory for every operation.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"vcs/internal/config"
	"vcs/internal/content"
	vcserr "vcs/internal/errors"
	"vcs/internal/journal"
	"vcs/internal/stage"
	"vcs/internal/workdir"
	"vcs/shared/utils"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	userFile          = "user"
	commitCounterFile = "commit"
	positionFile      = "position"
	branchesDir       = "branches"
	commitsDir        = "commits"
	contentDir        = "commits_files"
	contentListFile   = "commits_files_list"
	stageDir          = "stage"
	stageListFile     = "stage_list"
	journalDir        = "journal"

	initialMessage = "Initial commit"
)

// Options configures a repository handle.
type Options struct {
	Config *config.Config // nil means config.Default()
	Logger *zap.Logger    // nil means no logging
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Repository is an open repository. A handle is not safe for concurrent use
// and callers must not operate on one repository from several handles at
// once.
type Repository struct {
	root    string
	dir     string
	cfg     *config.Config
	logger  *zap.Logger
	store   *content.Store
	stage   *stage.Zone
	work    *workdir.Directory
	journal *journal.Journal
	commits *lru.Cache[int, *Commit]
}

// Create initialises a repository in root owned by author. The default branch
// is created and seeded with an empty root commit, so every history starts at
// commit 0.
func Create(root, author string, opts Options) (*Repository, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(author) == "" || strings.ContainsAny(author, "\r\n") {
		return nil, fmt.Errorf("invalid author name %q", author)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving repository root: %w", err)
	}
	dir := filepath.Join(root, config.RepoDirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, vcserr.RepoAlreadyExists(dir)
	} else if !os.IsNotExist(err) {
		return nil, vcserr.FileSystem("inspecting repository directory", err)
	}

	if err := initLayout(dir, author, opts.Config.DefaultBranch); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	r, err := Open(root, opts)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if err := r.seed(); err != nil {
		r.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("seeding repository: %w", err)
	}

	r.logger.Info("repository created", zap.String("author", author))
	r.record(journal.Entry{Op: journal.OpInit, Branch: opts.Config.DefaultBranch, Commit: 0})
	return r, nil
}

func initLayout(dir, author, defaultBranch string) error {
	for _, d := range []string{dir, filepath.Join(dir, branchesDir), filepath.Join(dir, commitsDir), filepath.Join(dir, contentDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return vcserr.FileSystem("creating repository layout", err)
		}
	}

	files := map[string][]string{
		userFile:          {author},
		commitCounterFile: {"0"},
		positionFile:      {defaultBranch, "-1"},
		contentListFile:   nil,
	}
	for name, lines := range files {
		if err := utils.WriteLines(filepath.Join(dir, name), lines); err != nil {
			return vcserr.FileSystem("writing "+name, err)
		}
	}

	return stage.Init(filepath.Join(dir, stageDir), filepath.Join(dir, stageListFile))
}

func (r *Repository) seed() error {
	if _, err := CreateBranch(r, r.cfg.DefaultBranch, -1); err != nil {
		return err
	}
	_, err := CreateCommit(r, initialMessage)
	return err
}

// Open opens the repository whose working tree is rooted at root.
func Open(root string, opts Options) (*Repository, error) {
	opts = opts.withDefaults()
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving repository root: %w", err)
	}
	dir := filepath.Join(root, config.RepoDirName)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, vcserr.BadRepo("no repository at %s", root)
	}

	logger := opts.Logger.With(zap.String("repo", root))
	r := &Repository{
		root:   root,
		dir:    dir,
		cfg:    opts.Config,
		logger: logger,
	}
	if err := r.validate(); err != nil {
		return nil, err
	}

	r.store, err = content.NewStore(content.StoreOptions{
		Root:     r.path(contentDir),
		ListPath: r.path(contentListFile),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening content store: %w", err)
	}

	r.stage, err = stage.Open(r.path(stageDir), r.path(stageListFile), logger)
	if err != nil {
		return nil, fmt.Errorf("opening staging zone: %w", err)
	}

	r.work = workdir.New(root, config.RepoDirName, logger)

	r.commits, err = lru.New[int, *Commit](opts.Config.CommitCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating commit cache: %w", err)
	}

	r.journal, err = journal.Open(r.path(journalDir))
	if err != nil {
		logger.Warn("journal unavailable", zap.Error(err))
		r.journal = nil
	}

	return r, nil
}

// FindRoot walks up from dir to the nearest working tree holding a
// repository.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, config.RepoDirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", vcserr.BadRepo("not inside a repository")
		}
		dir = parent
	}
}

// Close releases the journal. The handle must not be used afterwards.
func (r *Repository) Close() error {
	if r.journal == nil {
		return nil
	}
	err := r.journal.Close()
	r.journal = nil
	return err
}

func (r *Repository) path(elem ...string) string {
	return filepath.Join(append([]string{r.dir}, elem...)...)
}

// validate checks that every file and directory of the layout is present.
func (r *Repository) validate() error {
	dirs := []string{branchesDir, commitsDir, contentDir, stageDir}
	files := []string{userFile, commitCounterFile, positionFile, contentListFile, stageListFile}

	for _, name := range dirs {
		info, err := os.Stat(r.path(name))
		if err != nil || !info.IsDir() {
			return vcserr.BadRepo("repository directory %s is missing", name)
		}
	}
	for _, name := range files {
		info, err := os.Stat(r.path(name))
		if err != nil || !info.Mode().IsRegular() {
			return vcserr.BadRepo("repository file %s is missing", name)
		}
	}
	return nil
}

// save flushes the staging list and the content counters.
func (r *Repository) save() error {
	if err := r.stage.Save(); err != nil {
		return fmt.Errorf("saving staging zone: %w", err)
	}
	if err := r.store.WriteCounters(); err != nil {
		return fmt.Errorf("saving content counters: %w", err)
	}
	return nil
}

func (r *Repository) readLines(name string) ([]string, error) {
	lines, err := utils.ReadLines(r.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.BadRepo("repository file %s is missing", name)
		}
		return nil, vcserr.FileSystem("reading "+name, err)
	}
	return lines, nil
}

func (r *Repository) readInt(name string) (int, error) {
	lines, err := r.readLines(name)
	if err != nil {
		return 0, err
	}
	if len(lines) != 1 {
		return 0, vcserr.BadRepo("repository file %s is malformed", name)
	}
	n, err := strconv.Atoi(lines[0])
	if err != nil {
		return 0, vcserr.BadRepo("repository file %s is malformed", name)
	}
	return n, nil
}

func (r *Repository) writeLines(name string, lines ...string) error {
	if err := utils.WriteLines(r.path(name), lines); err != nil {
		return vcserr.FileSystem("writing "+name, err)
	}
	return nil
}

func (r *Repository) Root() string {
	return r.root
}

// Dir is the repository directory inside the working tree.
func (r *Repository) Dir() string {
	return r.dir
}

func (r *Repository) Config() *config.Config {
	return r.cfg
}

func (r *Repository) Logger() *zap.Logger {
	return r.logger
}

// DefaultBranch is the branch the root commit was made on. It is read from
// the repository, not the config, so it survives config changes.
func (r *Repository) DefaultBranch() (string, error) {
	root, err := ReadCommit(r, 0)
	if err != nil {
		if errors.Is(err, vcserr.ErrNoSuchCommit) {
			return "", vcserr.Corrupt(err, "root commit is missing")
		}
		return "", err
	}
	return root.Branch, nil
}

func (r *Repository) UserName() (string, error) {
	lines, err := r.readLines(userFile)
	if err != nil {
		return "", err
	}
	if len(lines) != 1 {
		return "", vcserr.BadRepo("repository file %s is malformed", userFile)
	}
	return lines[0], nil
}

func (r *Repository) SetUserName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("invalid user name %q", name)
	}
	if err := r.validate(); err != nil {
		return err
	}
	return r.writeLines(userFile, name)
}

// CommitsNumber is the number the next commit will get.
func (r *Repository) CommitsNumber() (int, error) {
	n, err := r.readInt(commitCounterFile)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, vcserr.BadRepo("negative commit counter %d", n)
	}
	return n, nil
}

func (r *Repository) UpdateCommitCounter() error {
	n, err := r.CommitsNumber()
	if err != nil {
		return err
	}
	return r.writeLines(commitCounterFile, strconv.Itoa(n+1))
}

// Position returns the current branch name and commit number.
func (r *Repository) Position() (string, int, error) {
	lines, err := r.readLines(positionFile)
	if err != nil {
		return "", 0, err
	}
	if len(lines) != 2 {
		return "", 0, vcserr.BadRepo("repository file %s is malformed", positionFile)
	}
	n, err := strconv.Atoi(lines[1])
	if err != nil {
		return "", 0, vcserr.BadRepo("repository file %s is malformed", positionFile)
	}
	return lines[0], n, nil
}

func (r *Repository) setPosition(branch string, commit int) error {
	return r.writeLines(positionFile, branch, strconv.Itoa(commit))
}

func (r *Repository) CurrentBranchName() (string, error) {
	name, _, err := r.Position()
	return name, err
}

func (r *Repository) CurrentBranch() (*Branch, error) {
	name, err := r.CurrentBranchName()
	if err != nil {
		return nil, err
	}
	return GetBranch(r, name)
}

func (r *Repository) CurrentCommitNumber() (int, error) {
	_, n, err := r.Position()
	return n, err
}

func (r *Repository) CurrentCommit() (*Commit, error) {
	n, err := r.CurrentCommitNumber()
	if err != nil {
		return nil, err
	}
	return ReadCommit(r, n)
}

// SetCurrentBranch moves the position to branch name, keeping the commit.
func (r *Repository) SetCurrentBranch(name string) error {
	if _, err := GetBranch(r, name); err != nil {
		return err
	}
	_, n, err := r.Position()
	if err != nil {
		return err
	}
	return r.setPosition(name, n)
}

// SetCurrentCommit moves the position to commit n, keeping the branch.
func (r *Repository) SetCurrentCommit(n int) error {
	name, _, err := r.Position()
	if err != nil {
		return err
	}
	return r.setPosition(name, n)
}

func (r *Repository) StagingZone() *stage.Zone {
	return r.stage
}

func (r *Repository) WorkingDirectory() *workdir.Directory {
	return r.work
}

func (r *Repository) ContentStore() *content.Store {
	return r.store
}

// Branches lists branch names in order.
func (r *Repository) Branches() ([]string, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.path(branchesDir))
	if err != nil {
		return nil, vcserr.FileSystem("reading branches", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && validBranchName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// CheckoutCommit replaces the working tree and the staging zone with commit
// n and moves the position to it, on the branch that commit was made on.
func (r *Repository) CheckoutCommit(n int) error {
	if err := r.validate(); err != nil {
		return err
	}
	target, err := r.checkout(n)
	if err != nil {
		return err
	}
	if err := r.setPosition(target.Branch, n); err != nil {
		return err
	}

	r.logger.Info("checked out commit", zap.Int("commit", n), zap.String("branch", target.Branch))
	r.record(journal.Entry{Op: journal.OpCheckout, Branch: target.Branch, Commit: n})
	return nil
}

// checkout swaps the current commit's files for commit n's in the working
// tree and the staging zone. The position is left to the caller.
func (r *Repository) checkout(n int) (*Commit, error) {
	target, err := ReadCommit(r, n)
	if err != nil {
		return nil, err
	}
	current, err := r.CurrentCommit()
	if err != nil {
		return nil, err
	}

	if err := current.RemoveFrom(r.work); err != nil {
		return nil, err
	}
	if err := r.stage.Wipe(); err != nil {
		return nil, fmt.Errorf("wiping staging zone: %w", err)
	}
	if err := target.Checkout(r.work, r.stage); err != nil {
		return nil, err
	}
	if err := r.save(); err != nil {
		return nil, err
	}
	return target, nil
}

// record appends to the journal. Failures are logged and otherwise ignored.
func (r *Repository) record(e journal.Entry) {
	if r.journal == nil {
		return
	}
	if e.Author == "" {
		e.Author, _ = r.UserName()
	}
	if _, err := r.journal.Record(e); err != nil {
		r.logger.Warn("journal write failed", zap.String("op", string(e.Op)), zap.Error(err))
	}
}
