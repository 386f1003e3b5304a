// Package notify delivers admin-channel alerts: approval requests and
// other operator-facing signals. Backends share one interface; the
// default is structured logging, with Redis pub/sub for deployments that
// route alerts to an external consumer.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier sends one alert. Implementations must be safe for concurrent
// use.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogNotifier writes alerts to the structured log. It never fails.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier uses the default logger when log is nil.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With("component", "notify")}
}

func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.log.Warn("admin alert", "subject", subject, "body", body)
	return nil
}

// RedisNotifier publishes alerts to a Redis channel as "subject\n\nbody".
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to addr and publishes on channel.
func NewRedisNotifier(addr, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, subject, body string) error {
	payload := subject + "\n\n" + body
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish alert to %s: %w", n.channel, err)
	}
	return nil
}

// Close releases the Redis connection.
func (n *RedisNotifier) Close() error { return n.client.Close() }

// Message is one captured alert.
type Message struct {
	Subject string
	Body    string
}

// MemoryNotifier captures alerts for tests.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemoryNotifier() *MemoryNotifier { return &MemoryNotifier{} }

func (n *MemoryNotifier) Notify(_ context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything captured.
func (n *MemoryNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}
