// internal/workdir/local.go
package workdir

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vcs/internal/content"
	vcserr "vcs/internal/errors"
	"vcs/shared/utils"

	"go.uber.org/zap"
)

// Directory is the live tree the user edits. Files are addressed by
// slash-separated paths relative to the root; hashes are computed on demand.
type Directory struct {
	root    string
	repoDir string
	logger  *zap.Logger
}

// New returns the working directory rooted at root. repoDir names the
// repository directory inside it, which is never listed.
func New(root, repoDir string, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		root:    root,
		repoDir: repoDir,
		logger:  logger,
	}
}

func (d *Directory) Root() string {
	return d.root
}

// Abs maps a logical path to its location on disk.
func (d *Directory) Abs(logicalPath string) string {
	return filepath.Join(d.root, filepath.FromSlash(content.CleanPath(logicalPath)))
}

// Rel converts a path on disk, or relative to the current directory, into a
// logical path inside the tree.
func (d *Directory) Rel(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(p) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		abs = filepath.Join(cwd, p)
	}
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return "", fmt.Errorf("getting relative path: %w", err)
	}
	rel = content.CleanPath(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside the working directory %s", p, d.root)
	}
	return rel, nil
}

// Ignore loads the ignore rules currently on disk.
func (d *Directory) Ignore() (*Ignore, error) {
	ig, err := loadIgnore(filepath.Join(d.root, IgnoreFile), d.repoDir)
	if err != nil {
		return nil, vcserr.FileSystem("reading ignore file", err)
	}
	return ig, nil
}

// IsIgnored reports whether logicalPath matches the ignore rules.
func (d *Directory) IsIgnored(logicalPath string) (bool, error) {
	ig, err := d.Ignore()
	if err != nil {
		return false, err
	}
	return ig.Match(logicalPath), nil
}

// AddIgnore appends logicalPath to the ignore file unless already present.
func (d *Directory) AddIgnore(logicalPath string) error {
	logicalPath, err := content.CheckPath(logicalPath)
	if err != nil {
		return err
	}
	ig, err := d.Ignore()
	if err != nil {
		return err
	}
	for _, p := range ig.Patterns() {
		if p == logicalPath {
			return nil
		}
	}

	file := filepath.Join(d.root, IgnoreFile)
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return vcserr.FileSystem("opening ignore file", err)
	}
	f.Close()
	if err := utils.AppendLine(file, logicalPath); err != nil {
		return vcserr.FileSystem("writing ignore file", err)
	}
	return nil
}

// File hashes the regular file at logicalPath.
func (d *Directory) File(logicalPath string) (content.TrackedFile, error) {
	if _, err := content.CheckPath(logicalPath); err != nil {
		return content.TrackedFile{}, err
	}
	abs := d.Abs(logicalPath)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return content.TrackedFile{}, vcserr.NoSuchFile(logicalPath)
		}
		return content.TrackedFile{}, vcserr.FileSystem("inspecting working file", err)
	}
	if !info.Mode().IsRegular() {
		return content.TrackedFile{}, vcserr.NoSuchFile(logicalPath)
	}

	f, err := content.FromDisk(abs, logicalPath)
	if err != nil {
		return content.TrackedFile{}, vcserr.FileSystem("hashing working file", err)
	}
	return f, nil
}

// Contains reports whether a regular file exists at logicalPath.
func (d *Directory) Contains(logicalPath string) bool {
	if !content.InTree(logicalPath) {
		return false
	}
	info, err := os.Stat(d.Abs(logicalPath))
	return err == nil && info.Mode().IsRegular()
}

// List returns every non-ignored regular file in the tree, ordered by path.
func (d *Directory) List() ([]content.TrackedFile, error) {
	paths, err := d.Expand(".")
	if err != nil {
		return nil, err
	}

	files := make([]content.TrackedFile, 0, len(paths))
	for _, p := range paths {
		f, err := d.File(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Expand resolves logicalPath to the non-ignored regular files it names: the
// file itself, or every file below it when it is a directory.
func (d *Directory) Expand(logicalPath string) ([]string, error) {
	if _, err := content.CheckPath(logicalPath); err != nil {
		return nil, err
	}
	ig, err := d.Ignore()
	if err != nil {
		return nil, err
	}

	start := d.Abs(logicalPath)
	info, err := os.Stat(start)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserr.NoSuchFile(logicalPath)
		}
		return nil, vcserr.FileSystem("inspecting working path", err)
	}
	if !info.IsDir() {
		p := content.CleanPath(logicalPath)
		if ig.Match(p) || !info.Mode().IsRegular() {
			return nil, nil
		}
		return []string{p}, nil
	}

	var paths []string
	err = filepath.WalkDir(start, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = content.CleanPath(rel)
		if rel == "." {
			return nil
		}

		if ig.Match(rel) {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, vcserr.FileSystem("walking working directory", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Add writes f's content to f's path in the tree, replacing what is there.
func (d *Directory) Add(f content.TrackedFile) error {
	if _, err := content.CheckPath(f.Path); err != nil {
		return err
	}
	target := d.Abs(f.Path)
	if filepath.Clean(f.Location) == target {
		return nil
	}
	if err := utils.CopyFile(f.Location, target); err != nil {
		return vcserr.FileSystem(fmt.Sprintf("writing %s to working directory", f.Path), err)
	}
	d.logger.Debug("restored working file", zap.String("path", f.Path), zap.String("hash", f.Hash))
	return nil
}

// Delete removes the regular file at logicalPath and any parent directories
// it leaves empty. Anything else at the path is reported as NoSuchFile.
func (d *Directory) Delete(logicalPath string) error {
	if _, err := content.CheckPath(logicalPath); err != nil {
		return err
	}
	abs := d.Abs(logicalPath)
	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return vcserr.NoSuchFile(logicalPath)
		}
		return vcserr.FileSystem("inspecting working file", err)
	}
	if !info.Mode().IsRegular() {
		return vcserr.NoSuchFile(logicalPath)
	}
	if err := os.Remove(abs); err != nil {
		return vcserr.FileSystem("removing working file", err)
	}
	d.logger.Debug("removed working file", zap.String("path", logicalPath))

	for dir := filepath.Dir(abs); dir != d.root && len(dir) > len(d.root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			// not empty
			break
		}
	}
	return nil
}
