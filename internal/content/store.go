// internal/content/store.go
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	vcserr "vcs/internal/errors"
	"vcs/shared/utils"

	"go.uber.org/zap"
)

// Store keeps one physical copy of every distinct content hash under root,
// reference counted by the indexes that point at it. A hash has an entry in
// counts iff a file named after it exists under root, and every count is
// positive.
type Store struct {
	root     string
	listPath string
	counts   map[string]int
	logger   *zap.Logger
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Root string // directory holding one file per hash
	// ListPath is the counter list file. When empty the counters live only in
	// memory and are rebuilt by the indexes that load against the store.
	ListPath string
	Logger   *zap.Logger
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, vcserr.FileSystem("creating content store directory", err)
	}

	s := &Store{
		root:     opts.Root,
		listPath: opts.ListPath,
		counts:   make(map[string]int),
		logger:   opts.Logger,
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Persistent reports whether the counters are backed by a list file.
func (s *Store) Persistent() bool {
	return s.listPath != ""
}

func (s *Store) Root() string {
	return s.root
}

// Add copies f's bytes into the store on first insertion and takes a
// reference on its hash. The returned file lives in the store.
func (s *Store) Add(f TrackedFile) (TrackedFile, error) {
	if !utils.IsHash(f.Hash) {
		return TrackedFile{}, fmt.Errorf("invalid content hash %q for %s", f.Hash, f.Path)
	}

	contentPath := s.contentPath(f.Hash)
	if s.counts[f.Hash] == 0 {
		if err := utils.CopyFile(f.Location, contentPath); err != nil {
			return TrackedFile{}, vcserr.FileSystem(fmt.Sprintf("copying %s into content store", f.Path), err)
		}
		s.logger.Debug("stored content",
			zap.String("hash", f.Hash),
			zap.String("path", f.Path))
	}
	s.counts[f.Hash]++

	return NewTrackedFile(f.Hash, f.Path, contentPath), nil
}

// Get binds an already stored hash to logicalPath without touching its count.
func (s *Store) Get(hash, logicalPath string) (TrackedFile, error) {
	if s.counts[hash] == 0 {
		return TrackedFile{}, vcserr.NoSuchFile(hash)
	}
	return NewTrackedFile(hash, logicalPath, s.contentPath(hash)), nil
}

// Retain takes a reference on a hash whose file is already present under
// root. Indexes use it to rebuild the counters of a non-persistent store.
func (s *Store) Retain(hash string) error {
	if s.counts[hash] == 0 {
		if _, err := os.Stat(s.contentPath(hash)); err != nil {
			if os.IsNotExist(err) {
				return vcserr.NoSuchFile(hash)
			}
			return vcserr.FileSystem("checking stored content", err)
		}
	}
	s.counts[hash]++
	return nil
}

// Delete drops one reference on hash, removing the physical copy with the
// last one.
func (s *Store) Delete(hash string) error {
	count := s.counts[hash]
	if count == 0 {
		return vcserr.NoSuchFile(hash)
	}

	if count > 1 {
		s.counts[hash] = count - 1
		return nil
	}

	if err := os.Remove(s.contentPath(hash)); err != nil && !os.IsNotExist(err) {
		return vcserr.FileSystem("removing stored content", err)
	}
	delete(s.counts, hash)
	s.logger.Debug("released content", zap.String("hash", hash))
	return nil
}

// RefCount returns the number of references held on hash.
func (s *Store) RefCount(hash string) int {
	return s.counts[hash]
}

// Len returns the number of distinct hashes stored.
func (s *Store) Len() int {
	return len(s.counts)
}

// Hashes returns every stored hash in sorted order.
func (s *Store) Hashes() []string {
	hashes := make([]string, 0, len(s.counts))
	for hash := range s.counts {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes
}

// WriteCounters rewrites the counter list file as "<hash> <refcount>" lines.
func (s *Store) WriteCounters() error {
	if !s.Persistent() {
		return nil
	}

	lines := make([]string, 0, len(s.counts))
	for _, hash := range s.Hashes() {
		lines = append(lines, fmt.Sprintf("%s %d", hash, s.counts[hash]))
	}
	if err := utils.WriteLines(s.listPath, lines); err != nil {
		return vcserr.FileSystem("writing content counters", err)
	}
	return nil
}

// Load replaces the in-memory counters with the counter list file. A missing
// file is an empty table; a malformed one, or a counter without its physical
// file, is a corrupt repository.
func (s *Store) Load() error {
	s.counts = make(map[string]int)
	if !s.Persistent() {
		return nil
	}

	lines, err := utils.ReadLines(s.listPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vcserr.FileSystem("reading content counters", err)
	}

	for _, line := range lines {
		hash, rawCount, ok := utils.SplitLast(line)
		if !ok || !utils.IsHash(hash) {
			return vcserr.BadRepo("malformed content counter line %q", line)
		}
		count, err := strconv.Atoi(rawCount)
		if err != nil || count <= 0 {
			return vcserr.BadRepo("invalid refcount in content counter line %q", line)
		}
		if _, err := os.Stat(s.contentPath(hash)); err != nil {
			if os.IsNotExist(err) {
				return vcserr.BadRepo("content %s is counted but missing from %s", hash, s.root)
			}
			return vcserr.FileSystem("checking stored content", err)
		}
		s.counts[hash] = count
	}
	return nil
}

func (s *Store) contentPath(hash string) string {
	return filepath.Join(s.root, hash)
}
