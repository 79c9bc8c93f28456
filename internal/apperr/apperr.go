package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrEmptyBatch      = fmt.Errorf("%w: no acceptable files in batch", ErrValidation)
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrConflict        = errors.New("state conflict")
	ErrNotFound        = errors.New("not found")
	ErrStorageIO       = errors.New("storage i/o failure")
	ErrLedgerMissing   = errors.New("storage ledger missing")
	ErrLedgerCorrupted = errors.New("storage ledger corrupted")
)

// Error carries an HTTP status and machine-readable code alongside the cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FileError explains why one file of a batch was rejected.
type FileError struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("file %d (%s): %s", e.Index, e.Name, e.Reason)
}

// PartialFailureError reports an ingestion batch that was rolled back after validation.
// Stored names the files that had been written before the failure; none of them survive.
type PartialFailureError struct {
	Stored   []string
	Rejected []FileError
	Err      error
}

func (e *PartialFailureError) Error() string {
	msg := "ingest rolled back"
	if len(e.Stored) > 0 {
		msg += fmt.Sprintf(" after %d file(s) written", len(e.Stored))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// ValidationError carries per-file rejections for a batch that was refused before any write.
type ValidationError struct {
	Rejected []FileError
	Cause    error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		parts = append(parts, r.Error())
	}
	cause := e.Cause
	if cause == nil {
		cause = ErrValidation
	}
	if len(parts) == 0 {
		return cause.Error()
	}
	return cause.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrValidation
}

// Status maps an error to an HTTP status and a stable code.
func Status(err error) (int, string) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status, apiErr.Code
	}
	switch {
	case errors.Is(err, ErrEmptyBatch):
		return http.StatusBadRequest, "empty_batch"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge, "quota_exceeded"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrStorageIO):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, ErrLedgerMissing), errors.Is(err, ErrLedgerCorrupted):
		return http.StatusInternalServerError, "ledger"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// PublicMessage hides internal detail for server-side failures.
func PublicMessage(err error) string {
	status, _ := Status(err)
	if status >= http.StatusInternalServerError {
		if errors.Is(err, ErrStorageIO) {
			return ErrStorageIO.Error()
		}
		return "internal error"
	}
	return err.Error()
}
