// Package memerr defines the error taxonomy of the memory layer.
//
// Storage backends return these sentinels directly so the memory manager
// can propagate them unchanged; it only adds the operation name via E.
// Cache backends never surface errors at all.
package memerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates the referenced context is absent for the tenant.
	ErrNotFound = errors.New("context not found")

	// ErrAlreadyExists indicates a duplicate (tenant, id) pair on create.
	ErrAlreadyExists = errors.New("context already exists")

	// ErrQuotaExceeded indicates the tenant is over its storage budget.
	ErrQuotaExceeded = errors.New("memory quota exceeded")

	// ErrInvalidRequest indicates malformed input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrVersionConflict indicates a conditional update lost a race:
	// the stored version no longer matches the expected one.
	ErrVersionConflict = errors.New("context version conflict")

	// ErrStorage indicates a durable-tier backend failure.
	ErrStorage = errors.New("storage operation failed")
)

// QuotaError reports a quota violation together with the tenant's current
// usage and budget. It unwraps to ErrQuotaExceeded.
type QuotaError struct {
	TenantID  string
	CurrentMB float64
	QuotaMB   float64
}

// Error returns a formatted error message.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("memory quota exceeded for tenant %s: %.2f MB used of %.2f MB",
		e.TenantID, e.CurrentMB, e.QuotaMB)
}

// Unwrap returns ErrQuotaExceeded so errors.Is works.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// OpError wraps an error with the name of the operation that failed.
//
// Error() returns "agentmem: <Op>: <Err>". The underlying error is
// preserved for errors.Is / errors.As.
type OpError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *OpError) Error() string {
	return fmt.Sprintf("agentmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// E wraps err with the operation name. If err is nil, E returns nil, so it
// is safe to use on any return path:
//
//	return memerr.E("StoreContext", err)
func E(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// HTTPStatus maps an error to the status code of the taxonomy:
// 404 NotFound, 409 AlreadyExists / VersionConflict, 429 QuotaExceeded,
// 400 InvalidRequest, 500 otherwise. Nil maps to 200.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
