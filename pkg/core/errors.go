package core

import "github.com/agentmem/agentmem-go/pkg/memerr"

// Re-exported sentinels so callers can match errors without importing the
// memerr package directly.
var (
	ErrNotFound        = memerr.ErrNotFound
	ErrAlreadyExists   = memerr.ErrAlreadyExists
	ErrQuotaExceeded   = memerr.ErrQuotaExceeded
	ErrInvalidRequest  = memerr.ErrInvalidRequest
	ErrVersionConflict = memerr.ErrVersionConflict
	ErrStorage         = memerr.ErrStorage
)
