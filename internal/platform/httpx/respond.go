// Package httpx carries the JSON plumbing shared by all HTTP handlers.
// Errors go out as RFC 7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ProblemDetail is an RFC 7807 error body.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes an RFC 7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON reads a single JSON document from the request body into
// target. Trailing data after the document is rejected.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("httpx: unexpected data after JSON body")
	}
	return nil
}
