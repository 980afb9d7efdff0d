package server

import (
	"encoding/json"
	"net/http"

	"github.com/ashgrove/mediavault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		writeErr(w, "response_too_large", apperr.ErrResponseTooLarge)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeErr maps err to its HTTP status via apperr.HTTPStatus and writes
// the spec §6.1 error shape {"error": <label>, "message"?: <detail>}.
func writeErr(w http.ResponseWriter, label string, err error) {
	status := apperr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apperr.ShapeFor(label, err))
}
