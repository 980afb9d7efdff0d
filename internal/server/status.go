package server

import (
	"net/http"
)

// handleStatus serves GET /api/status — a single snapshot (spec §4.10).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reporter.Snapshot())
}

// handleStatusStream serves GET /api/status/stream — one snapshot per
// second over text/event-stream until the client disconnects (spec
// §4.10).
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	s.reporter.Stream(w, r)
}
