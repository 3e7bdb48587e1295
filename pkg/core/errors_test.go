package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftlab/graphmem/pkg/core"
	"github.com/driftlab/graphmem/pkg/storage"
)

func TestMemoryErrorFormatting(t *testing.T) {
	err := core.NewMemoryError("Add", core.ErrEmptyText)
	assert.Equal(t, "graphmem: Add: empty text", err.Error())
}

func TestMemoryErrorUnwrap(t *testing.T) {
	err := core.NewMemoryError("Get", core.ErrNotFound)

	assert.ErrorIs(t, err, core.ErrNotFound)

	var memErr *core.MemoryError
	assert.ErrorAs(t, err, &memErr)
	assert.Equal(t, "Get", memErr.Op)
}

func TestNewMemoryErrorNil(t *testing.T) {
	assert.NoError(t, core.NewMemoryError("Add", nil))
}

func TestNotFoundIsStorageSentinel(t *testing.T) {
	// The core sentinel is the storage sentinel, so callers can match
	// either without importing both packages.
	assert.True(t, errors.Is(core.ErrNotFound, storage.ErrNotFound))
}
