package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaptext/internal/backend"
)

// Sentinel errors for precondition violations and discarded responses.
var (
	ErrNoFile     = errors.New("no file selected")
	ErrInFlight   = errors.New("a request of this kind is already in flight")
	ErrSuperseded = errors.New("response superseded by a newer request")
)

// AcceptedExtensions are the upload extensions the backend parses.
var AcceptedExtensions = []string{".csv", ".xlsx", ".xls"}

// DefaultMaxFileSize matches the backend's request size limit.
const DefaultMaxFileSize = 16 << 20

// Kind classifies a surfaced failure.
type Kind string

// Failure kinds.
const (
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindBackend    Kind = "backend"
)

// Failure is the user-visible error of the last request.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ValidationError is a client-side rejection of an upload.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// ValidateFile checks the extension, emptiness and size of an upload.
// maxSize <= 0 disables the size check.
func ValidateFile(f backend.File, maxSize int) error {
	name := filepath.Base(f.Name)
	if !HasAcceptedExtension(name) {
		return &ValidationError{
			Name:   name,
			Reason: "unsupported file type, only CSV and Excel files (" + strings.Join(AcceptedExtensions, ", ") + ") are accepted",
		}
	}
	if f.Size() == 0 {
		return &ValidationError{Name: name, Reason: "file is empty"}
	}
	if maxSize > 0 && f.Size() > maxSize {
		return &ValidationError{Name: name, Reason: fmt.Sprintf("file is %d bytes, the limit is %d", f.Size(), maxSize)}
	}
	return nil
}

// HasAcceptedExtension compares the extension case-insensitively.
func HasAcceptedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// classify maps an error to the kind shown to the user.
func classify(err error) Kind {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case backend.IsTransport(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransport
	default:
		return KindBackend
	}
}

func failureOf(err error) *Failure {
	return &Failure{Kind: classify(err), Message: err.Error()}
}
