package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWASIRejectsNonWasmPayload(t *testing.T) {
	ctx := context.Background()
	e, err := NewWASIExecutor(ctx, Limits{MemoryBytes: 16 << 20, Deadline: time.Second})
	require.NoError(t, err)
	defer func() { _ = e.Close(ctx) }()

	// A textual mutation is not a wasm module: the backend must fail
	// deterministically as a crash, never panic.
	res, err := e.Execute(ctx, mut("return 42"), time.Second)
	assert.ErrorIs(t, err, ErrCrash)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "wasm compile failed")
}

func TestWASIDefaultLimits(t *testing.T) {
	ctx := context.Background()
	e, err := NewWASIExecutor(ctx, Limits{})
	require.NoError(t, err)
	defer func() { _ = e.Close(ctx) }()

	assert.Equal(t, DefaultLimits().Deadline, e.limits.Deadline)
	assert.Equal(t, DefaultLimits().MemoryBytes, e.limits.MemoryBytes)
}
