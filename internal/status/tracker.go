package status

import (
	"sync"
	"time"
)

// thumbItem mirrors discovery.RecentItem but lives here since the
// server package, not discovery, is the only caller that generates
// still-thumbnails on the request path.
type thumbItem struct {
	Path string
	At   time.Time
}

// ThumbnailTracker records the most recently generated still-thumbnail
// path, for the status reporter's "recent.thumbnail" field (spec
// §4.10). internal/server holds one instance and calls Record after
// each successful thumbnail generation.
type ThumbnailTracker struct {
	mu   sync.Mutex
	last thumbItem
}

// NewThumbnailTracker returns an empty tracker.
func NewThumbnailTracker() *ThumbnailTracker {
	return &ThumbnailTracker{}
}

// Record notes path as the most recently generated thumbnail.
func (t *ThumbnailTracker) Record(path string) {
	t.mu.Lock()
	t.last = thumbItem{Path: path, At: time.Now()}
	t.mu.Unlock()
}

// Last returns the most recently recorded item, or the zero value if
// none has been recorded.
func (t *ThumbnailTracker) Last() thumbItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
