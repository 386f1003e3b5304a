package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// Recoverable execution failures. The workflow routes these to healing;
// anything else surfaces as an internal error.
var (
	// ErrTimeout: the payload exceeded its wall-clock deadline.
	ErrTimeout = errors.New("sandbox: execution deadline exceeded")
	// ErrCrash: the payload terminated abnormally.
	ErrCrash = errors.New("sandbox: execution crashed")
)

// Result is the observable outcome of one execution. Error carries the
// payload-level failure message (crash text, timeout note); it is distinct
// from the Go error, which classifies the failure.
type Result struct {
	OK     bool   `json:"ok"`
	Stdout string `json:"stdout,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Executor runs a mutation in an isolated context. Implementations must
// guarantee: no host environment leakage beyond {TZ=UTC, ENV=sandbox}, a
// hard wall-clock deadline, a memory cap, and Result.OK=false for any
// uncaught termination. Execute returns ErrTimeout or ErrCrash alongside
// the Result for recoverable failures.
type Executor interface {
	Execute(ctx context.Context, m contracts.Mutation, deadline time.Duration) (Result, error)
}

// Limits bounds one execution.
type Limits struct {
	Deadline    time.Duration
	MemoryBytes int64
}

// DefaultLimits mirrors the configured defaults: 5 s and 128 MiB.
func DefaultLimits() Limits {
	return Limits{Deadline: 5 * time.Second, MemoryBytes: 128 << 20}
}

// sandboxEnv is the only environment visible to payloads.
var sandboxEnv = map[string]string{"TZ": "UTC", "ENV": "sandbox"}
