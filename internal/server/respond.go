package server

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes carried in the JSON error envelope.
const (
	codeValidationError      = "VALIDATION_ERROR"
	codeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	codeNotFound             = "NOT_FOUND"
	codeFileTooLarge         = "FILE_TOO_LARGE"
	codeInconsistentState    = "INCONSISTENT_STATE"
	codeInternalError        = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v with the given status. Encoding failures are
// ignored; the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the standard {"error":{"code","message"}} envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
