package content

import (
	"errors"
	"fmt"
	"os"
	"sort"

	vcserr "vcs/internal/errors"
	"vcs/shared/utils"
)

// Index maps logical paths to tracked files whose content is referenced in a
// Store. It is persisted as "<path> <hash>" lines at listPath.
type Index struct {
	listPath string
	store    *Store
	files    map[string]TrackedFile
}

// NewIndex returns an empty index backed by store.
func NewIndex(listPath string, store *Store) *Index {
	return &Index{
		listPath: listPath,
		store:    store,
		files:    make(map[string]TrackedFile),
	}
}

// LoadIndex rebuilds an index from listPath. Every hash must resolve through
// the store; a dangling hash is a corrupt repository. Against a
// non-persistent store each entry also takes its reference.
func LoadIndex(listPath string, store *Store) (*Index, error) {
	idx := NewIndex(listPath, store)

	lines, err := utils.ReadLines(listPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.BadRepo("file list %s is missing", listPath)
		}
		return nil, vcserr.FileSystem("reading file list", err)
	}

	for _, line := range lines {
		logicalPath, hash, ok := utils.SplitLast(line)
		if !ok || !utils.IsHash(hash) {
			return nil, vcserr.BadRepo("malformed file list line %q in %s", line, listPath)
		}
		if !InTree(logicalPath) {
			return nil, vcserr.BadRepo("file list %s names %s outside the working tree", listPath, logicalPath)
		}

		if !store.Persistent() {
			if err := store.Retain(hash); err != nil {
				return nil, corruptEntry(err, listPath, logicalPath, hash)
			}
		}
		f, err := store.Get(hash, logicalPath)
		if err != nil {
			return nil, corruptEntry(err, listPath, logicalPath, hash)
		}
		idx.files[f.Path] = f
	}

	return idx, nil
}

func corruptEntry(err error, listPath, logicalPath, hash string) error {
	if errors.Is(err, vcserr.ErrNoSuchFile) {
		return vcserr.Corrupt(err, "%s references %s (%s) which is not in the content store", listPath, logicalPath, hash)
	}
	return err
}

// Add stores f's content and records it under f's path. An existing entry for
// the path is replaced without releasing its reference; callers wanting the
// old reference dropped must Delete first.
func (idx *Index) Add(f TrackedFile) (TrackedFile, error) {
	if _, err := CheckPath(f.Path); err != nil {
		return TrackedFile{}, err
	}
	stored, err := idx.store.Add(f)
	if err != nil {
		return TrackedFile{}, fmt.Errorf("adding %s: %w", f.Path, err)
	}
	idx.files[stored.Path] = stored
	return stored, nil
}

// Delete removes path and releases its content reference.
func (idx *Index) Delete(logicalPath string) error {
	logicalPath = CleanPath(logicalPath)
	f, ok := idx.files[logicalPath]
	if !ok {
		return vcserr.NoSuchFile(logicalPath)
	}

	if err := idx.store.Delete(f.Hash); err != nil {
		return fmt.Errorf("deleting %s: %w", logicalPath, err)
	}
	delete(idx.files, logicalPath)
	return nil
}

// Clear deletes every entry, releasing all references.
func (idx *Index) Clear() error {
	for _, p := range idx.Paths() {
		if err := idx.Delete(p); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) File(logicalPath string) (TrackedFile, error) {
	logicalPath = CleanPath(logicalPath)
	f, ok := idx.files[logicalPath]
	if !ok {
		return TrackedFile{}, vcserr.NoSuchFile(logicalPath)
	}
	return f, nil
}

func (idx *Index) Contains(logicalPath string) bool {
	_, ok := idx.files[CleanPath(logicalPath)]
	return ok
}

func (idx *Index) Len() int {
	return len(idx.files)
}

// Paths returns the tracked paths in sorted order.
func (idx *Index) Paths() []string {
	paths := make([]string, 0, len(idx.files))
	for p := range idx.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Files returns the tracked files ordered by path.
func (idx *Index) Files() []TrackedFile {
	files := make([]TrackedFile, 0, len(idx.files))
	for _, p := range idx.Paths() {
		files = append(files, idx.files[p])
	}
	return files
}

// Map returns a copy of the path to file mapping.
func (idx *Index) Map() map[string]TrackedFile {
	m := make(map[string]TrackedFile, len(idx.files))
	for p, f := range idx.files {
		m[p] = f
	}
	return m
}

// WriteList persists the index as sorted "<path> <hash>" lines.
func (idx *Index) WriteList() error {
	lines := make([]string, 0, len(idx.files))
	for _, f := range idx.Files() {
		lines = append(lines, f.Path+" "+f.Hash)
	}
	if err := utils.WriteLines(idx.listPath, lines); err != nil {
		return vcserr.FileSystem("writing file list", err)
	}
	return nil
}

func (idx *Index) ListPath() string {
	return idx.listPath
}

func (idx *Index) Store() *Store {
	return idx.store
}
