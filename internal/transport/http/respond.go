// Package http exposes the deposit ledger over a JSON HTTP API. Handlers
// decode, delegate to the domain services, and translate domain errors into
// status codes; no business rule lives here.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "garant/pkg/domain-errors"
)

// errorResponse is the uniform error body, matching the shape the auth
// middleware emits.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes. Unknown
// errors surface as 500 with a generic description, never with internals.
func writeError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:       string(dErrors.CodeInternal),
			Description: "internal error",
		})
		return
	}
	writeJSON(w, statusFor(de.Code), errorResponse{
		Error:       string(de.Code),
		Description: de.Message,
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeInvalidState, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnknownOperation:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// decode reads a JSON request body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body")
	}
	return nil
}
