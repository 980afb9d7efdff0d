// Package cache implements the two on-disk derivative caches of spec
// §4.2: a flat directory of still/webSafe/preview derivatives and an
// HLS tree of per-variant playlists and segments. Both are write-once
// per (hash, variant): writers stage to a temporary sibling and rename
// into place on success, the same pattern the teacher's
// ffmpeg.FinalizeTranscode uses for the original media file.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ashgrove/mediavault/internal/apperr"
)

// DerivativeCache is the flat <CACHE_ROOT>/ directory of
// <hash>.<variantLabel>.<ext> files.
type DerivativeCache struct {
	root string
}

// HLSCache is the <CACHE_ROOT>/hls-abr/<hash>/ tree.
type HLSCache struct {
	root string
}

// Hash derives the content-address used to name cache entries:
// md5(absolutePath + ":" + modifiedTimeMs), per spec §4.2.
func Hash(absolutePath string, modifiedTimeMs int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", absolutePath, modifiedTimeMs)))
	return hex.EncodeToString(sum[:])
}

// Init creates both cache roots under cacheRoot, bounded by a 1s
// timeout (spec §4.2 "At startup"). Failure to create the directories
// in time surfaces as apperr.ErrCacheInit.
func Init(ctx context.Context, cacheRoot string) (*DerivativeCache, *HLSCache, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	done := make(chan error, 1)
	var derivative *DerivativeCache
	var hls *HLSCache

	go func() {
		if err := os.MkdirAll(cacheRoot, 0755); err != nil {
			done <- err
			return
		}
		hlsRoot := filepath.Join(cacheRoot, "hls-abr")
		if err := os.MkdirAll(hlsRoot, 0755); err != nil {
			done <- err
			return
		}
		derivative = &DerivativeCache{root: cacheRoot}
		hls = &HLSCache{root: hlsRoot}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperr.ErrCacheInit, err)
		}
		return derivative, hls, nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: timed out creating cache directories", apperr.ErrCacheInit)
	}
}

// Root returns the cache's base directory.
func (c *DerivativeCache) Root() string { return c.root }

// Path returns the on-disk path for a derivative entry, without
// checking existence.
func (c *DerivativeCache) Path(hash, variantLabel, ext string) string {
	return filepath.Join(c.root, fmt.Sprintf("%s.%s.%s", hash, variantLabel, ext))
}

// Exists reports whether a derivative is already cached.
func (c *DerivativeCache) Exists(hash, variantLabel, ext string) bool {
	_, err := os.Stat(c.Path(hash, variantLabel, ext))
	return err == nil
}

// Writer stages content at a temporary sibling path and renames it
// into place only once Commit succeeds, so a reader never observes a
// partially-written derivative (spec §4.2, §5 "write-once per
// (hash, variant)").
type Writer struct {
	finalPath string
	tempPath  string
	file      *os.File
	closed    bool
}

// Create opens a Writer for the given derivative slot.
func (c *DerivativeCache) Create(hash, variantLabel, ext string) (*Writer, error) {
	finalPath := c.Path(hash, variantLabel, ext)
	return newWriter(finalPath)
}

// Create opens a Writer for an arbitrary path inside the HLS tree
// (e.g. a playlist or segment file), creating parent directories as
// needed.
func (h *HLSCache) Create(relPath string) (*Writer, error) {
	finalPath := filepath.Join(h.root, relPath)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return nil, err
	}
	return newWriter(finalPath)
}

// VariantDir returns <CACHE_ROOT>/hls-abr/<hash>/<variant>/.
func (h *HLSCache) VariantDir(hash, variant string) string {
	return filepath.Join(h.root, hash, variant)
}

// HashDir returns <CACHE_ROOT>/hls-abr/<hash>/, the directory holding one
// source's master playlist and variant subdirectories.
func (h *HLSCache) HashDir(hash string) string {
	return filepath.Join(h.root, hash)
}

// EnsureHashDir creates HashDir(hash) if it does not already exist, for the
// HLS adapter to write variant subdirectories into directly (it manages its
// own per-segment files outside the Writer rename-on-success pattern, since
// ffmpeg's hls muxer writes many segment files per invocation).
func (h *HLSCache) EnsureHashDir(hash string) (string, error) {
	dir := h.HashDir(hash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// MasterPlaylistPath returns <CACHE_ROOT>/hls-abr/<hash>/master.m3u8.
func (h *HLSCache) MasterPlaylistPath(hash string) string {
	return filepath.Join(h.root, hash, "master.m3u8")
}

// Exists reports whether path (already joined under h.root by the
// caller, or an absolute path returned from VariantDir/MasterPlaylistPath)
// exists on disk.
func (h *HLSCache) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newWriter(finalPath string) (*Writer, error) {
	tempPath := finalPath + ".part"
	f, err := os.Create(tempPath)
	if err != nil {
		return nil, err
	}
	return &Writer{finalPath: finalPath, tempPath: tempPath, file: f}, nil
}

// Write implements io.Writer, writing to the temporary sibling.
func (w *Writer) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// ReadFrom allows io.Copy(w, src) to avoid an extra buffer hop.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(w.file, r)
}

// Commit flushes and atomically renames the temporary file into place.
// On any failure the temporary file is left for a later cache sweep to
// reclaim, per spec §7 "left as a .part sibling to be reclaimed".
func (w *Writer) Commit() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return os.Rename(w.tempPath, w.finalPath)
}

// Abort closes and removes the temporary file without publishing it.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	return os.Remove(w.tempPath)
}
