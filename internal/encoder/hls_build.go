package encoder

import (
	"context"
	"fmt"

	"github.com/ashgrove/mediavault/internal/cache"
)

// BuildHLSCacheEntry runs the HLS ladder adapter into hlsCache's
// per-hash directory and writes the stitched master playlist (spec
// §4.2, §4.4). Shared by the discovery driver's background pre-encode
// and the request orchestrator's on-demand fallback so both paths
// produce the same cache entry.
func (v *VideoTool) BuildHLSCacheEntry(ctx context.Context, hlsCache *cache.HLSCache, absPath, hash string) error {
	hashDir, err := hlsCache.EnsureHashDir(hash)
	if err != nil {
		return fmt.Errorf("create hls directory: %w", err)
	}

	renditions, err := v.HLSLadder(ctx, absPath, hashDir)
	if err != nil {
		return err
	}

	master, err := MasterPlaylist(renditions)
	if err != nil {
		return fmt.Errorf("build master playlist: %w", err)
	}

	w, err := hlsCache.Create(hash + "/master.m3u8")
	if err != nil {
		return fmt.Errorf("open master playlist writer: %w", err)
	}
	if _, err := w.Write(master); err != nil {
		w.Abort()
		return fmt.Errorf("write master playlist: %w", err)
	}
	return w.Commit()
}
