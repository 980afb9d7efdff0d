package server

import (
	"net/http"

	"github.com/ashgrove/mediavault/internal/pathutil"
)

// handleFolders serves GET /api/folders/<path> — direct child folders
// at path (spec §4.9, §4.6 "folders").
func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	path := pathutil.NormalizeFolder(r.PathValue("path"))

	children, err := s.idx.Folders(path)
	if err != nil {
		writeErr(w, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"folders": children})
}
