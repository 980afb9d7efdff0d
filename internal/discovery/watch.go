package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/pathutil"
)

// moveDebounce is the window within which an unlink followed by an add of
// a matching size is treated as a move rather than delete+create, per
// spec §4.8.
const moveDebounce = 500 * time.Millisecond

type pendingDelete struct {
	size  int64
	timer *time.Timer
}

// Watch runs the optional fsnotify-backed watcher mode (spec §4.8
// "Optional file watcher mode") until ctx is cancelled. It complements,
// rather than replaces, the periodic full sweeps in runEnrichment.
func (d *Driver) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, d.root); err != nil {
		return err
	}

	mu := &sync.Mutex{}
	deleted := make(map[string]*pendingDelete)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.handleWatchEvent(watcher, ev, mu, deleted)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("discovery: watcher error", "error", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !de.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(de.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

func (d *Driver) handleWatchEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, mu *sync.Mutex, deleted map[string]*pendingDelete) {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addRecursive(watcher, ev.Name); err != nil {
				logger.Warn("discovery: watcher subtree add failed", "path", ev.Name, "error", err)
			}
			return
		}
		d.handleAdd(ev.Name, mu, deleted)

	case ev.Op&fsnotify.Write != 0:
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return
		}
		d.handleChange(ev.Name)

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		d.handleUnlink(ev.Name, mu, deleted)
	}
}

// handleAdd checks pending deletions for a size match before falling back
// to a plain insert-or-queue, implementing the move-detection half of
// spec §4.8's "add" routing.
func (d *Driver) handleAdd(absPath string, mu *sync.Mutex, deleted map[string]*pendingDelete) {
	rel, err := pathutil.ToRelative(d.root, absPath)
	if err != nil {
		return
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return
	}

	mu.Lock()
	var matchedRel string
	for oldRel, p := range deleted {
		if p.size == info.Size() {
			matchedRel = oldRel
			break
		}
	}
	if matchedRel != "" {
		deleted[matchedRel].timer.Stop()
		delete(deleted, matchedRel)
	}
	mu.Unlock()

	if matchedRel != "" {
		if err := d.idx.MoveFile(matchedRel, rel); err != nil {
			logger.Warn("discovery: move update failed", "old", matchedRel, "new", rel, "error", err)
		} else {
			logger.Info("discovery: detected move", "old", matchedRel, "new", rel)
		}
		return
	}

	if _, err := d.idx.InsertPaths([]string{rel}); err != nil {
		logger.Warn("discovery: watcher insert failed", "path", rel, "error", err)
	}
}

func (d *Driver) handleChange(absPath string) {
	rel, err := pathutil.ToRelative(d.root, absPath)
	if err != nil {
		return
	}
	if err := d.idx.ClearWatermarks(rel); err != nil {
		logger.Warn("discovery: watcher re-enrich queue failed", "path", rel, "error", err)
	}
}

// handleUnlink starts the move-detection debounce: the row is deleted
// only if no matching add arrives within moveDebounce (spec §4.8
// "start a 500ms debounce; on expiry, delete the row").
func (d *Driver) handleUnlink(absPath string, mu *sync.Mutex, deleted map[string]*pendingDelete) {
	rel, err := pathutil.ToRelative(d.root, absPath)
	if err != nil {
		return
	}

	rec, err := d.idx.Get(rel)
	if err != nil {
		return
	}
	var size int64
	if rec.SizeInBytes != nil {
		size = *rec.SizeInBytes
	}

	mu.Lock()
	if existing, ok := deleted[rel]; ok {
		existing.timer.Stop()
	}
	p := &pendingDelete{size: size}
	p.timer = time.AfterFunc(moveDebounce, func() {
		mu.Lock()
		_, stillPending := deleted[rel]
		delete(deleted, rel)
		mu.Unlock()

		if !stillPending {
			return
		}
		if err := d.idx.DeleteFile(rel); err != nil {
			logger.Warn("discovery: watcher delete failed", "path", rel, "error", err)
		} else {
			logger.Info("discovery: file removed", "path", rel)
		}
	})
	deleted[rel] = p
	mu.Unlock()
}
