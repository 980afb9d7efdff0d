package discovery

import (
	"context"
)

// buildHLS runs the HLS ladder adapter into the cache's per-hash
// directory and writes the stitched master playlist, per spec §4.2 and
// §4.4 "Video HLS". Runs at background priority via the scheduler, so it
// only proceeds when the queue is not paused for higher-priority work.
// The build itself is shared with the server package's on-demand
// fallback; see encoder.BuildHLSCacheEntry.
func (d *Driver) buildHLS(ctx context.Context, absPath, hash string) error {
	return d.video.BuildHLSCacheEntry(ctx, d.hlsCache, absPath, hash)
}
