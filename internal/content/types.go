package content

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"vcs/shared/utils"
)

// TrackedFile identifies one versioned file: the digest of its bytes, the
// slash-separated path it has inside the working tree, and where the bytes
// currently live on disk. Two tracked files are equal iff their hashes match;
// paths and locations do not take part in the comparison.
type TrackedFile struct {
	Hash     string `json:"hash"`
	Path     string `json:"path"`
	Location string `json:"location"`
}

func NewTrackedFile(hash, logicalPath, location string) TrackedFile {
	return TrackedFile{
		Hash:     hash,
		Path:     CleanPath(logicalPath),
		Location: location,
	}
}

// FromDisk hashes the file at location and binds it to logicalPath.
func FromDisk(location, logicalPath string) (TrackedFile, error) {
	hash, err := utils.HashFile(location)
	if err != nil {
		return TrackedFile{}, err
	}
	return NewTrackedFile(hash, logicalPath, location), nil
}

func (f TrackedFile) Equal(other TrackedFile) bool {
	return f.Hash == other.Hash
}

// Read returns the file's bytes from its physical location.
func (f TrackedFile) Read() ([]byte, error) {
	return os.ReadFile(f.Location)
}

func (f TrackedFile) String() string {
	return fmt.Sprintf("%s %s", f.Path, f.Hash)
}

// CleanPath normalises a logical path to slash form without a leading "./".
func CleanPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(p, "./")
}

// ErrOutsideTree is returned for logical paths that climb out of the
// working tree.
var ErrOutsideTree = errors.New("path is outside the working tree")

// InTree reports whether p, once cleaned, stays inside the working tree.
func InTree(p string) bool {
	p = CleanPath(p)
	return p != ".." && !strings.HasPrefix(p, "../") && !path.IsAbs(p)
}

// CheckPath cleans p and rejects it when it leaves the working tree.
func CheckPath(p string) (string, error) {
	clean := CleanPath(p)
	if !InTree(clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideTree, p)
	}
	return clean, nil
}
