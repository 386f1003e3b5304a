package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// outputMaxBytes caps captured stdout+stderr per execution.
const outputMaxBytes = 1 << 20

// WASIExecutor runs wasm payloads under wazero with deny-by-default
// capabilities: no filesystem mounts, no network, no host environment
// beyond the sanitized sandbox allowlist. Memory is capped via page limits
// and wall-clock time via the context deadline.
type WASIExecutor struct {
	runtime wazero.Runtime
	limits  Limits
}

// NewWASIExecutor creates the wasm backend.
func NewWASIExecutor(ctx context.Context, limits Limits) (*WASIExecutor, error) {
	if limits.Deadline <= 0 {
		limits.Deadline = DefaultLimits().Deadline
	}
	if limits.MemoryBytes <= 0 {
		limits.MemoryBytes = DefaultLimits().MemoryBytes
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	pages := uint32(limits.MemoryBytes / 65536)
	if pages == 0 {
		pages = 1
	}
	cfg = cfg.WithMemoryLimitPages(pages)

	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	return &WASIExecutor{runtime: r, limits: limits}, nil
}

func (e *WASIExecutor) Execute(ctx context.Context, m contracts.Mutation, deadline time.Duration) (Result, error) {
	if deadline <= 0 {
		deadline = e.limits.Deadline
	}
	execCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("aec-sandbox").
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithStartFunctions("_start")
	for k, v := range sandboxEnv {
		modCfg = modCfg.WithEnv(k, v)
	}
	// Deliberately not wired: WithFSConfig (no filesystem), WithSysNanotime
	// (no high-res timers), WithRandSource (no ambient randomness).

	compiled, err := e.runtime.CompileModule(execCtx, m.Payload)
	if err != nil {
		msg := fmt.Sprintf("wasm compile failed: %v", err)
		return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrCrash, msg)
	}
	defer func() { _ = compiled.Close(execCtx) }()

	mod, err := e.runtime.InstantiateModule(execCtx, compiled, modCfg)
	if err != nil {
		if execCtx.Err() != nil {
			msg := fmt.Sprintf("execution exceeded %s deadline", deadline)
			return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrTimeout, msg)
		}
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == 0 {
				return Result{OK: true, Stdout: stdout.String()}, nil
			}
			msg := fmt.Sprintf("exit code %d: %s", exitErr.ExitCode(), stderr.String())
			return Result{OK: false, Stdout: stdout.String(), Error: msg}, fmt.Errorf("%w: %s", ErrCrash, msg)
		}
		msg := fmt.Sprintf("execution trapped: %v", err)
		return Result{OK: false, Stdout: stdout.String(), Error: msg}, fmt.Errorf("%w: %s", ErrCrash, msg)
	}
	defer func() { _ = mod.Close(execCtx) }()

	if stdout.Len()+stderr.Len() > outputMaxBytes {
		msg := fmt.Sprintf("output exceeds %d byte limit", outputMaxBytes)
		return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrCrash, msg)
	}
	return Result{OK: true, Stdout: stdout.String()}, nil
}

// Close releases the wazero runtime.
func (e *WASIExecutor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
