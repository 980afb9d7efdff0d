package server

import "net/http"

// representationsPayload describes the height ladder and representation
// kinds a client can request from file mode, a supplemented endpoint
// mirroring the teacher's preset/encoder introspection routes.
type representationsPayload struct {
	Heights         []int    `json:"heights"`
	Representations []string `json:"representations"`
}

// handleRepresentations serves GET /api/representations.
func (s *Server) handleRepresentations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, representationsPayload{
		Heights:         standardHeights,
		Representations: []string{"original", "webSafe", "resize", "metadata", "hls", "preview"},
	})
}
