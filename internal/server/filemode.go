package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/cache"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/pathutil"
	"github.com/ashgrove/mediavault/internal/scheduler"
)

// fileMode serves GET /api/files/<path>?representation=...&height=...,
// implementing the five selection rules of spec §4.9.
func (s *Server) fileMode(w http.ResponseWriter, r *http.Request, relPath string) {
	abs, rec, err := s.resolveFile(relPath)
	if err != nil {
		writeErr(w, errorLabel(err), err)
		return
	}

	mime := ""
	if rec.MimeType != nil {
		mime = *rec.MimeType
	}

	q := r.URL.Query()
	representation := q.Get("representation")
	if representation == "" {
		representation = "original"
	}
	requestedHeight, _ := strconv.Atoi(q.Get("height"))
	height := snapHeight(requestedHeight)

	modMs := int64(0)
	if rec.Modified != nil {
		modMs = rec.Modified.UnixMilli()
	} else if info, statErr := os.Stat(abs); statErr == nil {
		modMs = info.ModTime().UnixMilli()
	}
	hash := cache.Hash(abs, modMs)

	switch {
	case representation == "metadata":
		m, err := projectRecord(rec, nil)
		if err != nil {
			writeErr(w, "response_too_large", apperr.ErrResponseTooLarge)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return

	case representation == "hls":
		s.serveHLS(w, r, relPath, abs, hash)
		return

	case pathutil.IsVideo(mime) && representation != "original":
		// Rule 3: preview, webSafe, and any non-hls resize all collapse
		// to the still-thumbnail for videos.
		s.serveVideoThumbnail(w, r, abs, hash, height)
		return

	case pathutil.IsImage(mime) && representation != "original":
		s.serveImageRepresentation(w, r, abs, hash, height)
		return

	default:
		s.serveOriginal(w, r, abs)
		return
	}
}

// resolveFile validates relPath resolves to a regular file inside the
// media root and has an index row (spec §4.9 rule 1).
func (s *Server) resolveFile(relPath string) (string, *index.FileRecord, error) {
	abs := filepath.Join(s.mediaRoot, relPath)
	if _, err := pathutil.ToRelative(s.mediaRoot, abs); err != nil {
		return "", nil, fmt.Errorf("%w", apperr.ErrPathEscape)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w", apperr.ErrNotFound)
	}

	rec, err := s.idx.Get(relPath)
	if err != nil {
		return "", nil, err
	}
	return abs, rec, nil
}

func errorLabel(err error) string {
	switch apperr.HTTPStatus(err) {
	case http.StatusForbidden:
		return "path_escape"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}

func (s *Server) serveOriginal(w http.ResponseWriter, r *http.Request, abs string) {
	f, err := os.Open(abs)
	if err != nil {
		writeErr(w, "not_found", fmt.Errorf("%w", apperr.ErrNotFound))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeErr(w, "internal_error", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("ETag", fmt.Sprintf(`"%x-%x"`, info.ModTime().UnixNano(), info.Size()))
	http.ServeContent(w, r, filepath.Base(abs), info.ModTime(), f)
}

// serveImageRepresentation serves a still at height from the derivative
// cache, generating it at userBlocked priority if missing, and
// opportunistically fills the rest of the standard-height ladder in the
// background (spec §4.9 rule 4).
func (s *Server) serveImageRepresentation(w http.ResponseWriter, r *http.Request, abs, hash string, height int) {
	resolved := height
	if resolved == 0 {
		resolved = standardHeights[len(standardHeights)-1]
	}
	label := strconv.Itoa(resolved)

	if err := s.ensureStill(r.Context(), abs, hash, label, resolved, scheduler.UserBlocked); err != nil {
		writeErr(w, "internal_error", err)
		return
	}

	for _, h := range standardHeights {
		if h == resolved {
			continue
		}
		hh, lbl := h, strconv.Itoa(h)
		s.sched.Enqueue(scheduler.UserImplicit, scheduler.Image, func(ctx context.Context) (interface{}, error) {
			return nil, s.ensureStill(ctx, abs, hash, lbl, hh, scheduler.UserImplicit)
		})
	}

	s.serveCachedJPEG(w, r, hash, label)
}

// serveVideoThumbnail serves the single-frame still at height,
// generating it if missing (spec §4.9 rule 3).
func (s *Server) serveVideoThumbnail(w http.ResponseWriter, r *http.Request, abs, hash string, height int) {
	resolved := height
	if resolved == 0 {
		resolved = standardHeights[len(standardHeights)-1]
	}
	label := strconv.Itoa(resolved)

	if err := s.ensureVideoThumbnail(r.Context(), abs, hash, label, resolved); err != nil {
		writeErr(w, "internal_error", err)
		return
	}
	s.serveCachedJPEG(w, r, hash, label)
}

// ensureStill generates the (hash, label) still derivative if missing.
// Concurrent callers for the same (hash, label) coalesce onto a single
// generation via genGroup, so racing requests share one resize and one
// cache write instead of each enqueueing its own (spec §8 "second
// request served from cache, no encoder invocation" under concurrency).
func (s *Server) ensureStill(ctx context.Context, abs, hash, label string, height int, priority scheduler.Priority) error {
	if s.derivative.Exists(hash, label, "jpg") {
		return nil
	}
	_, err, _ := s.genGroup.Do("still:"+hash+":"+label, func() (interface{}, error) {
		if s.derivative.Exists(hash, label, "jpg") {
			return nil, nil
		}
		fut := s.sched.Enqueue(priority, scheduler.Image, func(taskCtx context.Context) (interface{}, error) {
			return nil, s.writeStillDerivative(abs, hash, label, func(out string) error {
				return s.stills.Resize(taskCtx, abs, out, height)
			})
		})
		return fut.Get(ctx)
	})
	return err
}

// ensureVideoThumbnail generates the (hash, label) video-thumbnail
// derivative if missing, coalescing concurrent callers the same way as
// ensureStill.
func (s *Server) ensureVideoThumbnail(ctx context.Context, abs, hash, label string, height int) error {
	if s.derivative.Exists(hash, label, "jpg") {
		return nil
	}
	_, err, _ := s.genGroup.Do("thumb:"+hash+":"+label, func() (interface{}, error) {
		if s.derivative.Exists(hash, label, "jpg") {
			return nil, nil
		}
		fut := s.sched.Enqueue(scheduler.UserBlocked, scheduler.Video, func(taskCtx context.Context) (interface{}, error) {
			return nil, s.writeStillDerivative(abs, hash, label, func(out string) error {
				return s.video.Thumbnail(taskCtx, abs, out, height)
			})
		})
		if _, err := fut.Get(ctx); err != nil {
			return nil, err
		}
		s.thumbs.Record(abs)
		return nil, nil
	})
	return err
}

// writeStillDerivative runs encode, which writes its own output file,
// into a ".part.jpg" sibling of the final derivative path (ffmpeg picks
// the output format from the extension) and renames it into place only
// on success (spec §4.2, §5 "write-once per (hash, variant)").
func (s *Server) writeStillDerivative(abs, hash, label string, encode func(outPath string) error) error {
	finalPath := s.derivative.Path(hash, label, "jpg")
	tempPath := finalPath + ".part.jpg"

	if err := encode(tempPath); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, finalPath)
}

func (s *Server) serveCachedJPEG(w http.ResponseWriter, r *http.Request, hash, label string) {
	path := s.derivative.Path(hash, label, "jpg")
	f, err := os.Open(path)
	if err != nil {
		writeErr(w, "not_found", fmt.Errorf("%w", apperr.ErrNotFound))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeErr(w, "internal_error", err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
