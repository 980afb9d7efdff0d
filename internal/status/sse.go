package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Stream writes one Snapshot per second as a text/event-stream, until
// the client disconnects (spec §4.10 "/api/status/stream emits the
// same payload as text/event-stream, one event per second"). Mirrors
// the teacher's internal/api/sse.go flusher/disconnect pattern.
func (r *Reporter) Stream(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	writeSnapshot := func() bool {
		data, err := json.Marshal(r.Snapshot())
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeSnapshot() {
		return
	}

	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if !writeSnapshot() {
				return
			}
		}
	}
}
