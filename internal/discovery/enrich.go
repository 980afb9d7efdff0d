package discovery

import (
	"context"
	"os"
	"time"

	"github.com/ashgrove/mediavault/internal/cache"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/metadata"
	"github.com/ashgrove/mediavault/internal/pathutil"
	"github.com/ashgrove/mediavault/internal/scheduler"
)

// progressLogger emits a running rate at most once a second, per spec
// §4.8 "Progress logging emits a running rate and ETA every >= 1s".
type progressLogger struct {
	stage   string
	start   time.Time
	lastLog time.Time
	count   int
}

func newProgressLogger(stage string) *progressLogger {
	now := time.Now()
	return &progressLogger{stage: stage, start: now, lastLog: now}
}

func (p *progressLogger) tick() {
	p.count++
	if time.Since(p.lastLog) < time.Second {
		return
	}
	elapsed := time.Since(p.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.count) / elapsed
	}
	logger.Info("discovery: enrichment progress", "stage", p.stage, "processed", p.count, "rate_per_sec", rate)
	p.lastLog = time.Now()
}

// infoStage fills size/created/modified for rows lacking infoProcessedAt
// (spec §4.8 stage 1). Returns the number of rows processed.
func (d *Driver) infoStage(ctx context.Context) (int, error) {
	pl := newProgressLogger(StageInfo)
	total := 0

	for {
		if !d.waitIfPaused(ctx) {
			return total, ctx.Err()
		}
		rows, err := d.idx.PendingInfo(batchSize, 0)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		for _, r := range rows {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			d.processInfo(r)
			total++
			pl.tick()
		}
	}
}

func (d *Driver) processInfo(r *index.FileRecord) {
	rel := r.RelativePath()
	abs := d.absPath(rel)

	patch := &index.FileRecord{}
	size, modified, err := metadata.FileInfo(abs)
	if err != nil {
		logger.Warn("discovery: info stat failed", "path", rel, "error", err)
	} else {
		patch.SizeInBytes = &size
		patch.Modified = &modified
		patch.Created = &modified
	}

	if err := d.idx.MarkInfoProcessed(rel, patch); err != nil {
		logger.Warn("discovery: info stage failed to persist", "path", rel, "error", err)
	}
}

// exifStage invokes the metadata extractor for rows lacking
// exifProcessedAt (spec §4.8 stage 2).
func (d *Driver) exifStage(ctx context.Context) (int, error) {
	pl := newProgressLogger(StageExif)
	total := 0

	for {
		if !d.waitIfPaused(ctx) {
			return total, ctx.Err()
		}
		rows, err := d.idx.PendingExif(batchSize, 0)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		for _, r := range rows {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			d.processExif(ctx, r)
			total++
			pl.tick()
		}
	}
}

func (d *Driver) processExif(ctx context.Context, r *index.FileRecord) {
	rel := r.RelativePath()
	mime := ""
	if r.MimeType != nil {
		mime = *r.MimeType
	}

	if !pathutil.IsMedia(mime) {
		if err := d.idx.MarkExifProcessed(rel, nil); err != nil {
			logger.Warn("discovery: exif stage failed to persist", "path", rel, "error", err)
		}
		return
	}

	abs := d.absPath(rel)
	patch, err := d.extractor.Extract(ctx, abs, mime)
	if err != nil {
		logger.Warn("discovery: exif extraction failed", "path", rel, "error", err)
		if markErr := d.idx.MarkExifProcessed(rel, nil); markErr != nil {
			logger.Warn("discovery: exif stage failed to persist", "path", rel, "error", markErr)
		}
		return
	}

	if err := d.idx.MarkExifProcessed(rel, patch); err != nil {
		logger.Warn("discovery: exif stage failed to persist", "path", rel, "error", err)
	}
	d.setLastExif(rel)
}

// hlsStage pre-encodes multi-bitrate HLS for videos whose EXIF stage has
// completed (spec §4.8 stage 3). Progress is driven by cache existence,
// not a watermark, so the batch offset advances across a full sweep
// rather than relying on rows disappearing from the predicate.
func (d *Driver) hlsStage(ctx context.Context) (int, error) {
	pl := newProgressLogger(StageHLS)
	total := 0
	offset := 0

	for {
		if !d.waitIfPaused(ctx) {
			return total, ctx.Err()
		}
		rows, err := d.idx.PendingHLS(batchSize, offset)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		for _, r := range rows {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			d.processHLS(ctx, r)
			total++
			pl.tick()
		}
		offset += len(rows)
	}
}

func (d *Driver) processHLS(ctx context.Context, r *index.FileRecord) {
	rel := r.RelativePath()
	abs := d.absPath(rel)

	modMs := int64(0)
	if r.Modified != nil {
		modMs = r.Modified.UnixMilli()
	} else if info, err := os.Stat(abs); err == nil {
		modMs = info.ModTime().UnixMilli()
	}
	hash := cache.Hash(abs, modMs)

	if !d.hlsCache.Exists(d.hlsCache.MasterPlaylistPath(hash)) {
		fut := d.sched.Enqueue(scheduler.Background, scheduler.Video, func(taskCtx context.Context) (interface{}, error) {
			return nil, d.buildHLS(taskCtx, abs, hash)
		})
		if _, err := fut.Get(ctx); err != nil {
			logger.Warn("discovery: hls pre-encode failed", "path", rel, "error", err)
		}
	}

	d.buildWebSafeAndPreview(ctx, rel, abs, hash)
}
