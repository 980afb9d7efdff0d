package server

import (
	"encoding/json"
	"net/http"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/logger"
)

// handleGetConfig handles GET /api/config, mirroring the teacher's
// GetConfig (no sensitive paths beyond what's already LAN-visible).
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mediaRoot":        s.cfg.MediaRoot,
		"port":             s.cfg.Port,
		"workers":          s.cfg.Workers,
		"autoPauseSeconds": s.cfg.AutoPauseSeconds,
		"watchMode":        s.cfg.WatchMode,
		"logLevel":         s.cfg.LogLevel,
	})
}

// updateConfigRequest is the request body for PUT /api/config. Only the
// fields meaningful to change at runtime are accepted (spec's
// supplemented "config persistence and live reload").
type updateConfigRequest struct {
	Workers          *int    `json:"workers,omitempty"`
	AutoPauseSeconds *int    `json:"autoPauseSeconds,omitempty"`
	LogLevel         *string `json:"logLevel,omitempty"`
}

// handlePutConfig handles PUT /api/config, mirroring the teacher's
// UpdateConfig/workerPool.Resize pair: scheduler concurrency and log
// level take effect immediately; the change is persisted to disk.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, "bad_request", apperr.ErrBadRequest)
		return
	}

	s.cfgMu.Lock()
	if req.Workers != nil && *req.Workers > 0 {
		s.cfg.Workers = *req.Workers
		s.sched.Resize(*req.Workers)
	}
	if req.AutoPauseSeconds != nil && *req.AutoPauseSeconds >= 0 {
		s.cfg.AutoPauseSeconds = *req.AutoPauseSeconds
	}
	if req.LogLevel != nil {
		s.cfg.LogLevel = *req.LogLevel
		logger.SetLevel(*req.LogLevel)
	}
	cfg := *s.cfg
	s.cfgMu.Unlock()

	if err := cfg.Save(s.cfgPath); err != nil {
		logger.Warn("server: config save failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
