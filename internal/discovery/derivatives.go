package discovery

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/scheduler"
)

// defaultWebSafeHeight and defaultPreviewHeight name a single cached
// slot for each opportunistic derivative (spec §4.2 variant labels
// "webSafe.<height>" / "preview.<height>.<secs>s.audio"). Preview clips
// are scaled to defaultPreviewHeight; WebSafeVideo does not scale, so
// the webSafe file keeps the source's height whatever its label says.
const (
	defaultWebSafeHeight = 720
	defaultPreviewHeight = 360
)

// buildWebSafeAndPreview opportunistically fills the webSafe and
// preview derivative-cache slots for a video once its HLS ladder is
// ready, so a future direct-download or autoplay-preview surface finds
// them already cached (spec §4.2). Neither is reachable from the
// request orchestrator today (spec §4.9 step 3 routes all non-hls
// video representations to the still-thumbnail instead), so failures
// here are logged and swallowed rather than surfaced to a caller.
func (d *Driver) buildWebSafeAndPreview(ctx context.Context, rel, abs, hash string) {
	webSafeLabel := fmt.Sprintf("webSafe.%d", defaultWebSafeHeight)
	if !d.derivative.Exists(hash, webSafeLabel, "mp4") {
		fut := d.sched.Enqueue(scheduler.Background, scheduler.Video, func(taskCtx context.Context) (interface{}, error) {
			return nil, d.writeVideoDerivative(taskCtx, abs, hash, webSafeLabel, func(out string) error {
				return d.video.WebSafeVideo(taskCtx, abs, out)
			})
		})
		if _, err := fut.Get(ctx); err != nil {
			logger.Warn("discovery: webSafe pre-encode failed", "path", rel, "error", err)
		}
	}

	previewLabel := fmt.Sprintf("preview.%d.%ss.audio", defaultPreviewHeight, strconv.Itoa(encoder.PreviewDurationSeconds))
	if !d.derivative.Exists(hash, previewLabel, "mp4") {
		fut := d.sched.Enqueue(scheduler.Background, scheduler.Video, func(taskCtx context.Context) (interface{}, error) {
			return nil, d.writeVideoDerivative(taskCtx, abs, hash, previewLabel, func(out string) error {
				return d.video.Preview(taskCtx, abs, out, defaultPreviewHeight)
			})
		})
		if _, err := fut.Get(ctx); err != nil {
			logger.Warn("discovery: preview pre-encode failed", "path", rel, "error", err)
		}
	}
}

// writeVideoDerivative runs encode, an ffmpeg invocation that writes its
// own output file directly (unlike the in-process writers elsewhere in
// cache, ffmpeg needs a real path, not an io.Writer), into a ".part.mp4"
// sibling of the final derivative path (ffmpeg picks the output container
// from the extension) and renames it into place only on success (spec
// §4.2, §5 "write-once per (hash, variant)").
func (d *Driver) writeVideoDerivative(ctx context.Context, absPath, hash, variantLabel string, encode func(outPath string) error) error {
	finalPath := d.derivative.Path(hash, variantLabel, "mp4")
	tempPath := finalPath + ".part.mp4"

	if err := encode(tempPath); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, finalPath)
}
