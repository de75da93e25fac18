package workdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"vcs/internal/content"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventType is the kind of change observed in the tree.
type EventType string

const (
	EventCreate EventType = "create"
	EventWrite  EventType = "write"
	EventRemove EventType = "remove"
	EventRename EventType = "rename"
)

// Event is a change to one non-ignored path of the working directory.
type Event struct {
	Path string
	Type EventType
}

// Watch reports changes below the root to handle until ctx is cancelled.
// Ignored paths and the repository directory are skipped. Directories created
// while watching are picked up.
func (d *Directory) Watch(ctx context.Context, handle func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := d.watchTree(watcher, d.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.handleFSEvent(watcher, event, handle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// watchTree adds dir and every non-ignored directory below it.
func (d *Directory) watchTree(watcher *fsnotify.Watcher, dir string) error {
	ig, err := d.Ignore()
	if err != nil {
		return err
	}

	return filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		if rel != "." && ig.Match(rel) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

func (d *Directory) handleFSEvent(watcher *fsnotify.Watcher, event fsnotify.Event, handle func(Event)) {
	rel, err := filepath.Rel(d.root, event.Name)
	if err != nil {
		d.logger.Error("getting relative path", zap.Error(err))
		return
	}
	rel = content.CleanPath(rel)

	ignored, err := d.IsIgnored(rel)
	if err != nil {
		d.logger.Warn("reading ignore rules", zap.Error(err))
		return
	}
	if ignored {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := d.watchTree(watcher, event.Name); err != nil {
				d.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
		eventType = EventCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	handle(Event{Path: rel, Type: eventType})
}
