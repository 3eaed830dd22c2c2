package httpapi

import (
	"encoding/json"
	"net/http"
)

// apiError is the small typed error the handlers construct at the point
// of failure, translated to the JSON envelope of spec.md §6 by
// writeError. Generalizes the teacher's api.HTTPError shape (formerly in
// the now-removed src/api/http package) to the error taxonomy of §7.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func newAPIError(status int, code, message string) *apiError {
	return &apiError{Status: status, Code: code, Message: message}
}

var (
	errNotFound = newAPIError(http.StatusNotFound, "not_found", "no such paste")
	errInternal = newAPIError(http.StatusInternalServerError, "internal", "internal error")
	errNotReady = newAPIError(http.StatusServiceUnavailable, "service_unavailable", "store not ready")
)

// errorBody is the wire shape of spec.md §6's error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err *apiError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Code, Message: err.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
