// Package httputil holds the response envelope shared by every handler.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "census/pkg/domain-errors"
)

const (
	badRequestBody = "Bad Request"
	internalBody   = "Internal Server Error"
)

// Envelope wraps every successful payload.
type Envelope struct {
	Data any `json:"data"`
}

// WriteData writes {"data": v} with the given status.
func WriteData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Data: v})
}

// WriteError translates a domain error into a plain-text response. Domain
// failures never leak detail: they all become 400 "Bad Request".
func WriteError(w http.ResponseWriter, err error) {
	status := ToHTTPStatus(dErrors.CodeOf(err))
	body := badRequestBody
	if status == http.StatusInternalServerError {
		body = internalBody
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// ToHTTPStatus maps a domain code to an HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeMalformed, dErrors.CodeValidation, dErrors.CodeStructural, dErrors.CodeNotFound:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
