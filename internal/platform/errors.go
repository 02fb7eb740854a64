package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flowctl/flowctl/internal/flowdef"
)

// ErrNotFound matches an *APIError for a 404 response.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the platform API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string          // the body's "error" field, or "HTTP <status>"
	Body    json.RawMessage // decoded body when it was JSON, else nil
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

// Is maps status codes onto the sentinel errors callers branch on.
func (e *APIError) Is(target error) bool {
	switch target {
	case flowdef.ErrConflict:
		return e.Status == http.StatusConflict
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// NetworkError wraps a transport failure; no response was received.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error while calling workflow API (%s): %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status, Message: fmt.Sprintf("HTTP %d", status)}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return e
	}
	e.Body = json.RawMessage(body)
	if raw, ok := parsed["error"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			e.Message = s
		} else {
			e.Message = string(raw)
		}
	}
	return e
}
