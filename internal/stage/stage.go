// Package stage holds the staging zone: the proposed content of the next
// commit. Staged copies are deduplicated by hash inside the stage directory
// and their reference counts are rebuilt from the stage list on open.
package stage

import (
	"fmt"
	"os"
	"path/filepath"

	"vcs/internal/content"
	vcserr "vcs/internal/errors"
	"vcs/shared/utils"

	"go.uber.org/zap"
)

type Zone struct {
	dir    string
	index  *content.Index
	logger *zap.Logger
}

// Init creates an empty staging zone at dir with its list at listPath.
func Init(dir, listPath string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return vcserr.FileSystem("creating stage directory", err)
	}
	if err := utils.WriteLines(listPath, nil); err != nil {
		return vcserr.FileSystem("writing stage list", err)
	}
	return nil
}

// Open loads the staging zone and removes staged copies no entry refers to.
func Open(dir, listPath string, logger *zap.Logger) (*Zone, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := content.NewStore(content.StoreOptions{
		Root:   dir,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening stage store: %w", err)
	}

	index, err := content.LoadIndex(listPath, store)
	if err != nil {
		return nil, fmt.Errorf("loading stage list: %w", err)
	}

	z := &Zone{
		dir:    dir,
		index:  index,
		logger: logger,
	}
	if err := z.removeStrays(); err != nil {
		return nil, err
	}
	return z, nil
}

func (z *Zone) removeStrays() error {
	entries, err := os.ReadDir(z.dir)
	if err != nil {
		return vcserr.FileSystem("reading stage directory", err)
	}
	store := z.index.Store()
	for _, entry := range entries {
		if store.RefCount(entry.Name()) > 0 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(z.dir, entry.Name())); err != nil {
			return vcserr.FileSystem("removing stray staged copy", err)
		}
		z.logger.Debug("removed stray staged copy", zap.String("name", entry.Name()))
	}
	return nil
}

// AddFile stages f under its path, replacing any version already staged there.
func (z *Zone) AddFile(f content.TrackedFile) (content.TrackedFile, error) {
	if current, err := z.index.File(f.Path); err == nil {
		if current.Equal(f) {
			return current, nil
		}
		if err := z.index.Delete(f.Path); err != nil {
			return content.TrackedFile{}, err
		}
	}
	staged, err := z.index.Add(f)
	if err != nil {
		return content.TrackedFile{}, err
	}
	z.logger.Debug("staged file", zap.String("path", staged.Path), zap.String("hash", staged.Hash))
	return staged, nil
}

// RemoveFile unstages logicalPath.
func (z *Zone) RemoveFile(logicalPath string) error {
	if err := z.index.Delete(logicalPath); err != nil {
		return err
	}
	z.logger.Debug("unstaged file", zap.String("path", logicalPath))
	return nil
}

// Wipe unstages everything.
func (z *Zone) Wipe() error {
	return z.index.Clear()
}

// Save persists the stage list.
func (z *Zone) Save() error {
	return z.index.WriteList()
}

func (z *Zone) File(logicalPath string) (content.TrackedFile, error) {
	return z.index.File(logicalPath)
}

func (z *Zone) Contains(logicalPath string) bool {
	return z.index.Contains(logicalPath)
}

// Files returns the staged files ordered by path.
func (z *Zone) Files() []content.TrackedFile {
	return z.index.Files()
}

func (z *Zone) Paths() []string {
	return z.index.Paths()
}

func (z *Zone) Map() map[string]content.TrackedFile {
	return z.index.Map()
}

func (z *Zone) Len() int {
	return z.index.Len()
}

func (z *Zone) Empty() bool {
	return z.index.Len() == 0
}

func (z *Zone) Dir() string {
	return z.dir
}
