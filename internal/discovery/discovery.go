// Package discovery walks the media root and drives the three staged
// enrichment passes of spec §4.8, generalizing the teacher's
// internal/browse.Browser directory walk (filepath.WalkDir, hidden-entry
// skip, background population) from an on-demand directory-count cache
// into a persistent background driver that seeds and fills the index.
package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashgrove/mediavault/internal/cache"
	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/metadata"
	"github.com/ashgrove/mediavault/internal/pathutil"
	"github.com/ashgrove/mediavault/internal/scheduler"
)

// Stage names events are tagged with.
const (
	StageWalk = "walk"
	StageInfo = "info"
	StageExif = "exif"
	StageHLS  = "hls"
)

// Event reports discovery progress to Subscribe callers. Only the
// directory walk broadcasts events (StageWalk). The status reporter does
// not subscribe; it reads the driver's counters and the index instead.
type Event struct {
	Stage     string
	Processed int
	Message   string
	At        time.Time
}

const batchSize = 200

// Driver owns the background walk and enrichment loops. It holds no
// exclusive state of its own beyond bookkeeping: all durable state lives
// in the index, all derivative state in the cache.
type Driver struct {
	root       string
	idx        *index.Store
	extractor  *metadata.Extractor
	video      *encoder.VideoTool
	derivative *cache.DerivativeCache
	hlsCache   *cache.HLSCache
	sched      *scheduler.Scheduler

	subsMu sync.Mutex
	subs   []chan Event

	scannedMu sync.Mutex
	scanned   int

	recentMu  sync.Mutex
	lastExif  RecentItem

	runMu sync.Mutex
	runID string
}

// RecentItem names the most recently processed path for one stage, the
// status reporter's "recent.exif" field (spec §4.10).
type RecentItem struct {
	Path string
	At   time.Time
}

// New constructs a Driver over the given index, metadata extractor, video
// adapter, caches, and scheduler.
func New(root string, idx *index.Store, extractor *metadata.Extractor, video *encoder.VideoTool, derivative *cache.DerivativeCache, hlsCache *cache.HLSCache, sched *scheduler.Scheduler) *Driver {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &Driver{
		root:       absRoot,
		idx:        idx,
		extractor:  extractor,
		video:      video,
		derivative: derivative,
		hlsCache:   hlsCache,
		sched:      sched,
	}
}

// Subscribe returns a channel of progress events. The channel is buffered;
// a slow subscriber drops events rather than blocking the driver.
func (d *Driver) Subscribe() <-chan Event {
	ch := make(chan Event, 32)
	d.subsMu.Lock()
	d.subs = append(d.subs, ch)
	d.subsMu.Unlock()
	return ch
}

func (d *Driver) broadcast(e Event) {
	e.At = time.Now()
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Start launches the walk and the enrichment loop as background
// goroutines, returning immediately so the rest of startup is not
// blocked (spec §4.8 "Discovery must be non-blocking to the rest of
// startup").
func (d *Driver) Start(ctx context.Context) {
	d.runMu.Lock()
	d.runID = uuid.NewString()
	d.runMu.Unlock()

	go func() {
		if err := d.walk(ctx); err != nil && ctx.Err() == nil {
			logger.Error("discovery: walk failed", "error", err, "run", d.RunID())
		}
		d.runEnrichment(ctx)
	}()
}

// RunID identifies the current walk+enrichment run, surfaced on
// /api/status so a client can tell whether the driver has restarted
// since its last poll (e.g. after a config reload).
func (d *Driver) RunID() string {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.runID
}

// walk performs the initial recursive directory scan, inserting a bare
// row per regular file (spec §4.8 "Initial discovery").
func (d *Driver) walk(ctx context.Context) error {
	logger.Info("discovery: starting walk", "root", d.root)
	start := time.Now()

	var batch []string
	var total int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := d.idx.InsertPaths(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err := filepath.WalkDir(d.root, func(p string, de fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			logger.Warn("discovery: walk entry error", "path", p, "error", err)
			return nil
		}
		if de.IsDir() {
			if p != d.root && strings.HasPrefix(de.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(de.Name(), ".") {
			return nil
		}

		rel, relErr := pathutil.ToRelative(d.root, p)
		if relErr != nil {
			return nil
		}

		batch = append(batch, rel)
		total++
		d.setScanned(total)
		if len(batch) >= 500 {
			if flushErr := flush(); flushErr != nil {
				return flushErr
			}
		}
		if total%10000 == 0 {
			logger.Info("discovery: walk progress", "files", total)
			d.broadcast(Event{Stage: StageWalk, Processed: total})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	logger.Info("discovery: walk complete", "files", total, "duration", time.Since(start).Round(time.Millisecond))
	d.broadcast(Event{Stage: StageWalk, Processed: total, Message: "complete"})
	return nil
}

// runEnrichment repeatedly sweeps the three enrichment stages in order
// until ctx is cancelled, sleeping briefly between sweeps once a sweep
// finds nothing left to do. This both drains work discovered by the
// initial walk and picks up files added later (e.g. by the watcher).
func (d *Driver) runEnrichment(ctx context.Context) {
	for ctx.Err() == nil {
		didWork := false

		if n, err := d.infoStage(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("discovery: info stage error", "error", err)
		} else if n > 0 {
			didWork = true
		}

		if n, err := d.exifStage(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("discovery: exif stage error", "error", err)
		} else if n > 0 {
			didWork = true
		}

		if n, err := d.hlsStage(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("discovery: hls stage error", "error", err)
		} else if n > 0 {
			didWork = true
		}

		if !didWork {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// waitIfPaused sleeps while the scheduler's auto-pause is in effect (spec
// §4.8 "Stages are pausable ... while paused, the stage sleeps"),
// re-checking every 100ms to mirror the scheduler's own wake cadence.
// Returns false if ctx is cancelled while waiting.
func (d *Driver) waitIfPaused(ctx context.Context) bool {
	for {
		restartAt := d.sched.PausedUntil()
		remaining := time.Until(restartAt)
		if remaining <= 0 {
			return true
		}
		wait := 100 * time.Millisecond
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (d *Driver) absPath(relPath string) string {
	return filepath.Join(d.root, relPath)
}

// setScanned records the walk's running file count for the status
// reporter's "scannedFilesCount" (spec §4.10).
func (d *Driver) setScanned(n int) {
	d.scannedMu.Lock()
	d.scanned = n
	d.scannedMu.Unlock()
}

// ScannedFiles returns the most recent walk count.
func (d *Driver) ScannedFiles() int {
	d.scannedMu.Lock()
	defer d.scannedMu.Unlock()
	return d.scanned
}

func (d *Driver) setLastExif(path string) {
	d.recentMu.Lock()
	d.lastExif = RecentItem{Path: path, At: time.Now()}
	d.recentMu.Unlock()
}

// LastExif returns the most recently EXIF-processed path, or a zero
// RecentItem if none has been processed yet.
func (d *Driver) LastExif() RecentItem {
	d.recentMu.Lock()
	defer d.recentMu.Unlock()
	return d.lastExif
}
