// Package transport contains the HTTP router, middleware chain, and request
// handlers for the history API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/bpmonitor/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:            http.StatusBadRequest,
	model.ErrNotFound:              http.StatusNotFound,
	model.ErrMethodNotAllowed:      http.StatusMethodNotAllowed,
	model.ErrInternalError:         http.StatusInternalServerError,
	model.ErrAuditStoreUnavailable: http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code. HTML
// escaping is disabled so Cyrillic and markup in action names are emitted
// verbatim.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. If err does not wrap an *ErrorEnvelope, a generic 500 is
// returned.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	WriteJSON(w, status, ee)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, model.NewMethodNotAllowedError())
}
