package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryKV wraps a backend with bounded retry for transient I/O failures.
// Each operation is attempted up to maxAttempts times with exponential
// backoff and deterministic jitter seeded from the key, so replays of the
// same failure schedule identically. ErrNotFound is terminal, never retried.
type RetryKV struct {
	inner       KV
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	sleep       func(time.Duration)
	log         *slog.Logger
}

// WithRetry wraps kv with the default 3-attempt policy.
func WithRetry(kv KV) *RetryKV {
	return &RetryKV{
		inner:       kv,
		maxAttempts: 3,
		baseDelay:   50 * time.Millisecond,
		maxJitter:   25 * time.Millisecond,
		sleep:       time.Sleep,
		log:         slog.Default().With("component", "store"),
	}
}

// WithSleep overrides the inter-attempt sleep for tests.
func (r *RetryKV) WithSleep(sleep func(time.Duration)) *RetryKV {
	r.sleep = sleep
	return r
}

func (r *RetryKV) backoff(key string, attempt int) time.Duration {
	delay := r.baseDelay << attempt
	if r.maxJitter <= 0 {
		return delay
	}
	seed := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", key, attempt)))
	jitter := binary.BigEndian.Uint64(seed[:8]) % uint64(r.maxJitter)
	return delay + time.Duration(jitter)
}

func (r *RetryKV) do(ctx context.Context, key, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err = fn(); err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", op, key, ctx.Err())
		}
		if attempt < r.maxAttempts-1 {
			d := r.backoff(key, attempt)
			r.log.Warn("persistence retry", "op", op, "key", key, "attempt", attempt+1, "delay", d, "error", err)
			r.sleep(d)
		}
	}
	return fmt.Errorf("%s %s exhausted %d attempts: %w", op, key, r.maxAttempts, err)
}

func (r *RetryKV) Put(ctx context.Context, key string, value []byte) error {
	return r.do(ctx, key, "put", func() error { return r.inner.Put(ctx, key, value) })
}

func (r *RetryKV) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := r.do(ctx, key, "get", func() error {
		var err error
		out, err = r.inner.Get(ctx, key)
		return err
	})
	return out, err
}

func (r *RetryKV) Delete(ctx context.Context, key string) error {
	return r.do(ctx, key, "delete", func() error { return r.inner.Delete(ctx, key) })
}

func (r *RetryKV) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	var out []Entry
	err := r.do(ctx, prefix, "scan", func() error {
		var err error
		out, err = r.inner.Scan(ctx, prefix)
		return err
	})
	return out, err
}

func (r *RetryKV) Close() error {
	return r.inner.Close()
}
