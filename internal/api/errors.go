package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// errorBody is the JSON envelope for error responses.
type errorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON serialises v with the given status. A nil v produces an
// empty body, which is what the 204-style endpoints want.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write; the client may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

// writeError renders the error envelope. The machine-readable code is
// derived from the HTTP status text ("Not Found" becomes "not_found").
func writeError(w http.ResponseWriter, status int, message string) {
	var body errorBody
	body.Error.Status = status
	body.Error.Code = statusCode(status)
	body.Error.Message = message
	writeJSON(w, status, body)
}

func statusCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}
