package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpReturnsStdout(t *testing.T) {
	e := NewInterpExecutor(DefaultLimits())
	res, err := e.Execute(context.Background(), mut("return 42"), time.Second)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "42", res.Stdout)
}

func TestInterpSyntaxErrorIsCrash(t *testing.T) {
	e := NewInterpExecutor(DefaultLimits())
	res, err := e.Execute(context.Background(), mut("function broken() { return 1; }}"), time.Second)
	assert.ErrorIs(t, err, ErrCrash)
	assert.False(t, res.OK)
	assert.Equal(t, "SyntaxError: Unexpected token }", res.Error)
}

func TestInterpUnclosedBrace(t *testing.T) {
	e := NewInterpExecutor(DefaultLimits())
	res, err := e.Execute(context.Background(), mut("function broken() { return 1;"), time.Second)
	assert.ErrorIs(t, err, ErrCrash)
	assert.Equal(t, "SyntaxError: Unexpected end of input", res.Error)
}

func TestInterpThrowIsCrash(t *testing.T) {
	e := NewInterpExecutor(DefaultLimits())
	res, err := e.Execute(context.Background(), mut(`throw new Error("boom")`), time.Second)
	assert.ErrorIs(t, err, ErrCrash)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "boom")
}

func TestInterpUnboundedLoopTimesOut(t *testing.T) {
	e := NewInterpExecutor(DefaultLimits())
	start := time.Now()
	res, err := e.Execute(context.Background(), mut("while(true) { spin(); }"), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, res.OK)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "deadline is burned, not skipped")
}

func TestInterpLoopHonorsCancellation(t *testing.T) {
	e := NewInterpExecutor(DefaultLimits())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, mut("for(;;) {}"), time.Hour)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestInterpMemoryCap(t *testing.T) {
	e := NewInterpExecutor(Limits{Deadline: time.Second, MemoryBytes: 64})
	big := make([]byte, 65)
	for i := range big {
		big[i] = 'a'
	}
	res, err := e.Execute(context.Background(), mut(string(big)), time.Second)
	assert.ErrorIs(t, err, ErrCrash)
	assert.Contains(t, res.Error, "out of memory")
}

func TestInterpEnvIsSanitized(t *testing.T) {
	t.Setenv("SECRET_HOST_VAR", "leaky")
	e := NewInterpExecutor(DefaultLimits())

	res, err := e.Execute(context.Background(), mut("return process.env.SECRET_HOST_VAR"), time.Second)
	require.NoError(t, err)
	assert.Empty(t, res.Stdout, "host env must not leak")

	res, err = e.Execute(context.Background(), mut("return process.env.TZ"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "UTC", res.Stdout)

	res, err = e.Execute(context.Background(), mut("return process.env.ENV"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "sandbox", res.Stdout)
}
