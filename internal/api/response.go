package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/cargocheck/internal/apperr"
)

// StatusClientClosedRequest is returned for canceled operations.
const StatusClientClosedRequest = 499

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// errorBody is the JSON shape of an application error.
type errorBody struct {
	Error  string            `json:"error"`
	Code   apperr.Code       `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Run    any               `json:"run,omitempty"`
}

// appError writes err with the status matching its code. Errors without a
// code are logged and reported as internal errors with fallback as message.
func appError(w http.ResponseWriter, err error, fallback string) {
	status, body := errorResponse(err, fallback)
	jsonResponse(w, status, body)
}

func errorResponse(err error, fallback string) (int, errorBody) {
	code := apperr.CodeOf(err)
	if code == "" {
		slog.Error(fallback, "error", err)
		return http.StatusInternalServerError, errorBody{Error: fallback}
	}

	body := errorBody{Error: err.Error(), Code: code}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Error = ae.Message
		body.Fields = ae.Fields
	}
	return StatusFor(code), body
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeEmptySelection:
		return http.StatusConflict
	case apperr.CodeStorageFull:
		return http.StatusInsufficientStorage
	case apperr.CodeAppUnavailable:
		return http.StatusFailedDependency
	case apperr.CodeCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
