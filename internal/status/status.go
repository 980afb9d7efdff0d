// Package status builds the snapshot served by GET /api/status and
// streamed by GET /api/status/stream (spec §4.10), reading across the
// index's watermark counts, the discovery driver's scan/exif trackers,
// and the encoder package's active-invocation counter.
package status

import (
	"github.com/dustin/go-humanize"

	"github.com/ashgrove/mediavault/internal/discovery"
	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/index"
)

// Pending reports outstanding rows per enrichment stage (spec §4.10
// "pending = {info, exif, thumbnails}").
type Pending struct {
	Info       int `json:"info"`
	Exif       int `json:"exif"`
	Thumbnails int `json:"thumbnails"`
}

// StageProgress reports one stage's completion fraction.
type StageProgress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// Progress reports per-stage completion plus an overall average (spec
// §4.10 "progress").
type Progress struct {
	Info    StageProgress `json:"info"`
	Exif    StageProgress `json:"exif"`
	HLS     StageProgress `json:"hls"`
	Overall float64       `json:"overall"`
}

// RecentItem names the most recently produced item for one kind, or the
// zero value if none has been produced yet (spec §4.10 "recent =
// {thumbnail, exif}").
type RecentItem struct {
	Path string `json:"path,omitempty"`
	At   string `json:"at,omitempty"`
}

// Transcodes reports the encoder's in-flight invocation count.
type Transcodes struct {
	Active int `json:"active"`
}

// Snapshot is the full /api/status payload.
type Snapshot struct {
	RunID             string     `json:"runId"`
	DatabaseSize      int        `json:"databaseSize"`
	DatabaseSizeHuman string     `json:"databaseSizeHuman"`
	ScannedFilesCount int        `json:"scannedFilesCount"`
	Pending           Pending    `json:"pending"`
	Progress          Progress   `json:"progress"`
	Recent            struct {
		Thumbnail RecentItem `json:"thumbnail"`
		Exif      RecentItem `json:"exif"`
	} `json:"recent"`
	Transcodes Transcodes `json:"transcodes"`
}

// Reporter builds Snapshots from the live index, discovery driver, and
// the caller-supplied thumbnail tracker (thumbnail generation happens
// in the request path, inside internal/server, not in discovery).
type Reporter struct {
	idx      *index.Store
	driver   *discovery.Driver
	thumbs   *ThumbnailTracker
}

// NewReporter returns a Reporter wired to the live index and discovery
// driver, plus a ThumbnailTracker the server updates as it serves
// still-derivative requests.
func NewReporter(idx *index.Store, driver *discovery.Driver, thumbs *ThumbnailTracker) *Reporter {
	return &Reporter{idx: idx, driver: driver, thumbs: thumbs}
}

// Snapshot builds one status payload (spec §4.10). Errors reading any
// individual count are treated as zero rather than failing the whole
// snapshot, since status reporting must stay available even under
// index contention.
func (r *Reporter) Snapshot() Snapshot {
	var snap Snapshot
	snap.RunID = r.driver.RunID()

	total, _ := r.idx.RowCount()
	snap.DatabaseSize = total
	snap.DatabaseSizeHuman = humanize.Comma(int64(total))

	snap.ScannedFilesCount = r.driver.ScannedFiles()

	infoPending, _ := r.idx.PendingInfoCount()
	exifPending, _ := r.idx.PendingExifCount()
	hlsPending, _ := r.idx.PendingHLSCount()
	snap.Pending = Pending{Info: infoPending, Exif: exifPending, Thumbnails: hlsPending}

	snap.Progress = buildProgress(total, infoPending, exifPending, hlsPending)

	if last := r.driver.LastExif(); last.Path != "" {
		snap.Recent.Exif = RecentItem{Path: last.Path, At: last.At.Format(timeFormat)}
	}
	if r.thumbs != nil {
		if last := r.thumbs.Last(); last.Path != "" {
			snap.Recent.Thumbnail = RecentItem{Path: last.Path, At: last.At.Format(timeFormat)}
		}
	}

	snap.Transcodes = Transcodes{Active: encoder.ActiveTranscodes()}

	return snap
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func buildProgress(total, infoPending, exifPending, hlsPending int) Progress {
	info := stageProgress(total, infoPending)
	exif := stageProgress(total, exifPending)
	hls := stageProgress(total, hlsPending)

	var sum float64
	var n int
	for _, p := range []StageProgress{info, exif, hls} {
		if p.Total > 0 {
			sum += p.Percent
			n++
		}
	}
	overall := 0.0
	if n > 0 {
		overall = sum / float64(n)
	}

	return Progress{Info: info, Exif: exif, HLS: hls, Overall: overall}
}

func stageProgress(total, pending int) StageProgress {
	if total == 0 {
		return StageProgress{}
	}
	completed := total - pending
	if completed < 0 {
		completed = 0
	}
	percent := float64(completed) / float64(total) * 100
	return StageProgress{Completed: completed, Total: total, Percent: percent}
}

