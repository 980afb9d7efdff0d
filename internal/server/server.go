// Package server implements the request orchestrator of spec §4.9: the
// HTTP surface over the index, filter compiler, derivative cache, and
// encoder adapters. Routing follows the teacher's internal/api package
// (a plain *http.ServeMux with method-prefixed patterns registered in
// one place), generalized from job-queue management to media query and
// delivery.
package server

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashgrove/mediavault/internal/cache"
	"github.com/ashgrove/mediavault/internal/config"
	"github.com/ashgrove/mediavault/internal/discovery"
	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/metadata"
	"github.com/ashgrove/mediavault/internal/scheduler"
	"github.com/ashgrove/mediavault/internal/status"
)

// standardHeights is the resize ladder of spec §4.9: a requested height
// snaps up to the smallest member >= it, or "original".
var standardHeights = []int{160, 320, 640, 1080, 2160}

// Server holds everything a request handler needs: the live index, the
// two derivative caches, the scheduler and encoder adapters that fill
// them, the discovery driver and status reporter for introspection, and
// the live config for the supplemented PUT /api/config endpoint.
type Server struct {
	mediaRoot string

	idx        *index.Store
	derivative *cache.DerivativeCache
	hlsCache   *cache.HLSCache
	sched      *scheduler.Scheduler
	video      *encoder.VideoTool
	stills     *encoder.StillResizer
	extractor  *metadata.Extractor
	driver     *discovery.Driver
	reporter   *status.Reporter
	thumbs     *status.ThumbnailTracker

	cfgMu   sync.Mutex
	cfg     *config.Config
	cfgPath string

	// aggGroup deduplicates concurrent identical aggregate queries
	// (count/dateRange/dateHistogram/cluster) the way the teacher's
	// Browser.countGroup deduped concurrent directory-count walks for
	// the same path: several clients polling the same folder view at
	// once share one query instead of each re-scanning the index.
	aggGroup singleflight.Group

	// genGroup coalesces concurrent derivative generation for the same
	// (hash, variant): two requests racing to produce the same missing
	// HLS ladder, still, or video thumbnail share one encoder
	// invocation and one cache write instead of each enqueueing its
	// own (spec §8 scenario 4, §5 write-once-per-variant).
	genGroup singleflight.Group
}

// New constructs a Server. mediaRoot must be the same absolute root the
// discovery driver was built with.
func New(mediaRoot string, idx *index.Store, derivative *cache.DerivativeCache, hlsCache *cache.HLSCache, sched *scheduler.Scheduler, video *encoder.VideoTool, stills *encoder.StillResizer, extractor *metadata.Extractor, driver *discovery.Driver, reporter *status.Reporter, thumbs *status.ThumbnailTracker, cfg *config.Config, cfgPath string) *Server {
	return &Server{
		mediaRoot:  mediaRoot,
		idx:        idx,
		derivative: derivative,
		hlsCache:   hlsCache,
		sched:      sched,
		video:      video,
		stills:     stills,
		extractor:  extractor,
		driver:     driver,
		reporter:   reporter,
		thumbs:     thumbs,
		cfg:        cfg,
		cfgPath:    cfgPath,
	}
}

// Router builds the *http.ServeMux carrying every endpoint of spec §4.9,
// §4.10, and the supplemented additions.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/folders/{path...}", s.handleFolders)
	mux.HandleFunc("GET /api/files/", s.handleFiles)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/status/stream", s.handleStatusStream)
	mux.HandleFunc("GET /api/representations", s.handleRepresentations)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	mux.HandleFunc("OPTIONS /", s.handlePreflight)

	return mux
}

// Handler wraps Router with the CORS and auto-pause middleware shared
// by every route (spec §4.9 "every request first calls the scheduler's
// pause(60s)", §6.1 CORS).
func (s *Server) Handler() http.Handler {
	mux := s.Router()
	return s.withMiddleware(mux)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		s.autoPauseSeconds()

		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("server: request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) autoPauseSeconds() {
	s.cfgMu.Lock()
	secs := s.cfg.AutoPauseSeconds
	s.cfgMu.Unlock()
	if secs <= 0 {
		return
	}
	s.sched.Pause(time.Duration(secs) * time.Second)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapHeight returns the smallest member of standardHeights >= requested,
// or 0 to mean "original" (spec §4.9 "height parses to the smallest
// member of the standard-height ladder ... that is >= the request").
func snapHeight(requested int) int {
	if requested <= 0 {
		return 0
	}
	for _, h := range standardHeights {
		if h >= requested {
			return h
		}
	}
	return 0
}
