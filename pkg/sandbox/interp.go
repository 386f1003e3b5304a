package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// InterpExecutor is the in-process fallback backend: an isolated
// interpreter over the textual payload. It never touches the host
// filesystem, network, or environment; payload env lookups resolve only
// against the sanitized sandbox environment.
//
// The interpreter is deliberately shallow. It exists to give textual
// mutations the same contract as the WASI backend: deterministic syntax
// failures, crash-on-throw, deadline enforcement for unbounded loops, and
// stdout capture for return statements.
type InterpExecutor struct {
	limits Limits
}

// NewInterpExecutor creates the interpreter backend.
func NewInterpExecutor(limits Limits) *InterpExecutor {
	if limits.Deadline <= 0 {
		limits.Deadline = DefaultLimits().Deadline
	}
	if limits.MemoryBytes <= 0 {
		limits.MemoryBytes = DefaultLimits().MemoryBytes
	}
	return &InterpExecutor{limits: limits}
}

var (
	unboundedLoopRe = regexp.MustCompile(`while\s*\(\s*(true|1)\s*\)|for\s*\(\s*;\s*;\s*\)`)
	throwRe         = regexp.MustCompile(`throw\s+(?:new\s+\w+\s*\(\s*)?["']?([^"')\n;]*)`)
	returnRe        = regexp.MustCompile(`return\s+([^;\n]+)`)
	envRefRe        = regexp.MustCompile(`^process\.env\.(\w+)$`)
)

// checkSyntax verifies brace/paren balance, reporting failures the way a
// JS engine would.
func checkSyntax(text string) error {
	var stack []byte
	pairs := map[byte]byte{'}': '{', ')': '('}
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '{', '(':
			stack = append(stack, c)
		case '}', ')':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return fmt.Errorf("SyntaxError: Unexpected token %c", c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("SyntaxError: Unexpected end of input")
	}
	return nil
}

func (e *InterpExecutor) Execute(ctx context.Context, m contracts.Mutation, deadline time.Duration) (Result, error) {
	if deadline <= 0 {
		deadline = e.limits.Deadline
	}
	text := string(m.Payload)

	if int64(len(m.Payload)) > e.limits.MemoryBytes {
		msg := fmt.Sprintf("out of memory: payload %d bytes exceeds cap %d", len(m.Payload), e.limits.MemoryBytes)
		return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrCrash, msg)
	}

	if err := checkSyntax(text); err != nil {
		return Result{OK: false, Error: err.Error()}, fmt.Errorf("%w: %s", ErrCrash, err.Error())
	}

	if m := throwRe.FindStringSubmatch(text); m != nil {
		msg := strings.TrimSpace(m[1])
		if msg == "" {
			msg = "uncaught exception"
		}
		return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrCrash, msg)
	}

	if unboundedLoopRe.MatchString(text) {
		// An unbounded loop burns its whole deadline before the executor
		// gives up, exactly like a real runaway execution.
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		msg := fmt.Sprintf("execution exceeded %s deadline", deadline)
		return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrTimeout, msg)
	}

	if ctx.Err() != nil {
		msg := "execution cancelled"
		return Result{OK: false, Error: msg}, fmt.Errorf("%w: %s", ErrTimeout, msg)
	}

	var stdout strings.Builder
	if m := returnRe.FindStringSubmatch(text); m != nil {
		stdout.WriteString(e.evalExpr(strings.TrimSpace(m[1])))
	}
	return Result{OK: true, Stdout: stdout.String()}, nil
}

// evalExpr resolves a returned expression to its printable form. Only
// literals and sandbox env lookups resolve; anything else echoes as-is.
func (e *InterpExecutor) evalExpr(expr string) string {
	expr = strings.TrimSuffix(expr, ";")
	if m := envRefRe.FindStringSubmatch(expr); m != nil {
		return sandboxEnv[m[1]]
	}
	return strings.Trim(expr, `"'`)
}
