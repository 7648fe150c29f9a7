package memerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentmem/agentmem-go/pkg/memerr"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 200},
		{"not found", memerr.ErrNotFound, 404},
		{"already exists", memerr.ErrAlreadyExists, 409},
		{"version conflict", memerr.ErrVersionConflict, 409},
		{"quota exceeded", memerr.ErrQuotaExceeded, 429},
		{"invalid request", memerr.ErrInvalidRequest, 400},
		{"storage", memerr.ErrStorage, 500},
		{"unknown", errors.New("boom"), 500},
		{"wrapped not found", fmt.Errorf("lookup: %w", memerr.ErrNotFound), 404},
		{"op-wrapped invalid", memerr.E("StoreContext", memerr.ErrInvalidRequest), 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, memerr.HTTPStatus(tt.err))
		})
	}
}

func TestQuotaError(t *testing.T) {
	err := &memerr.QuotaError{TenantID: "tenant-a", CurrentMB: 99.5, QuotaMB: 100}

	assert.True(t, errors.Is(err, memerr.ErrQuotaExceeded))
	assert.Equal(t, 429, memerr.HTTPStatus(err))
	assert.Contains(t, err.Error(), "tenant-a")
}

func TestOpError_Format(t *testing.T) {
	err := memerr.E("DeleteContext", memerr.ErrNotFound)

	assert.Equal(t, "agentmem: DeleteContext: context not found", err.Error())
	assert.True(t, errors.Is(err, memerr.ErrNotFound))
}

func TestE_NilPassthrough(t *testing.T) {
	assert.NoError(t, memerr.E("StoreContext", nil))
}
