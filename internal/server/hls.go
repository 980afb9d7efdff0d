package server

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/scheduler"
)

// serveHLS implements spec §4.9 rule 2. A request with a segment=
// parameter serves that file (a variant playlist or a .ts segment)
// directly out of the hash's hls-abr directory; otherwise it ensures
// the ladder exists and returns the master playlist, with every entry
// rewritten to route back through this endpoint.
func (s *Server) serveHLS(w http.ResponseWriter, r *http.Request, relPath, abs, hash string) {
	if seg := r.URL.Query().Get("segment"); seg != "" {
		s.serveHLSEntry(w, r, relPath, hash, seg)
		return
	}

	if err := s.ensureHLS(r.Context(), abs, hash); err != nil {
		writeErr(w, "internal_error", err)
		return
	}
	s.serveHLSEntry(w, r, relPath, hash, "master.m3u8")
}

// ensureHLS generates the variant ladder at userBlocked priority if a
// request arrives before the discovery driver's background pre-encode
// has produced it (spec §4.9 rule 2 "ensure the variant exists").
// Concurrent callers for the same hash coalesce onto a single build via
// genGroup, so two requests racing on a missing playlist produce
// exactly one encoder invocation and one set of cache writes (spec §8
// scenario 4).
func (s *Server) ensureHLS(ctx context.Context, abs, hash string) error {
	if s.hlsCache.Exists(s.hlsCache.MasterPlaylistPath(hash)) {
		return nil
	}
	_, err, _ := s.genGroup.Do("hls:"+hash, func() (interface{}, error) {
		if s.hlsCache.Exists(s.hlsCache.MasterPlaylistPath(hash)) {
			return nil, nil
		}
		fut := s.sched.Enqueue(scheduler.UserBlocked, scheduler.Video, func(taskCtx context.Context) (interface{}, error) {
			return nil, s.video.BuildHLSCacheEntry(taskCtx, s.hlsCache, abs, hash)
		})
		return fut.Get(ctx)
	})
	return err
}

// serveHLSEntry serves relEntry (e.g. "master.m3u8", "360p/playlist.m3u8",
// or "360p/segment_000.ts") out of the hash's directory. Playlists are
// rewritten so every URI routes back through this path's hls endpoint;
// .ts segments are streamed as-is with video/mp2t (spec §4.9 rule 2).
func (s *Server) serveHLSEntry(w http.ResponseWriter, r *http.Request, relPath, hash, relEntry string) {
	hashDir := s.hlsCache.HashDir(hash)
	entryPath := filepath.Join(hashDir, filepath.FromSlash(relEntry))

	if !strings.HasPrefix(entryPath, hashDir+string(filepath.Separator)) {
		writeErr(w, "path_escape", apperr.ErrPathEscape)
		return
	}

	if strings.HasSuffix(relEntry, ".m3u8") {
		s.servePlaylist(w, relPath, entryPath, path.Dir(relEntry))
		return
	}

	f, err := os.Open(entryPath)
	if err != nil {
		writeErr(w, "not_found", apperr.ErrNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeErr(w, "internal_error", err)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	http.ServeContent(w, r, filepath.Base(entryPath), info.ModTime(), f)
}

// servePlaylist reads the m3u8 file at diskPath and rewrites every
// non-comment line — a URI relative to dir within the hash tree — into
// a query against this same file's hls endpoint, so a client never
// talks to the cache directly.
func (s *Server) servePlaylist(w http.ResponseWriter, relPath, diskPath, dir string) {
	raw, err := os.ReadFile(diskPath)
	if err != nil {
		writeErr(w, "not_found", apperr.ErrNotFound)
		return
	}

	base := "/api/files/" + relPath

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		entry := trimmed
		if dir != "." && dir != "" {
			entry = path.Join(dir, trimmed)
		}
		out.WriteString(base)
		out.WriteString("?representation=hls&segment=")
		out.WriteString(url.QueryEscape(entry))
		out.WriteByte('\n')
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write(out.Bytes())
}
