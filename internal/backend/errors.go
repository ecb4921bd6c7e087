package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Operation names used in errors and logs.
const (
	OpProcess  = "process"
	OpPreview  = "preview"
	OpBatch    = "batch"
	OpDownload = "download"
)

// TransportError is a failed exchange: connection errors, timeouts and HTTP
// failures that carry no error envelope.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected HTTP status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is an explicit failure reported by the backend.
type BackendError struct {
	Op      string
	Message string
	// Contract is set when the response did not match the API contract.
	Contract bool
}

func (e *BackendError) Error() string {
	if e.Contract {
		return fmt.Sprintf("%s: response violates contract: %s", e.Op, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: backend reported an error", e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBackend reports whether err is or wraps a BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
