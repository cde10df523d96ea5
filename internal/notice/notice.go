// Package notice carries transient user-facing messages (the toasts of the
// storefront UI) from the stores back to whoever handles the request.
package notice

import (
	"context"
	"sync"
)

type Level string

const (
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives user-facing messages.
type Notifier interface {
	Warn(ctx context.Context, msg string)
}

// Collector gathers the notices raised while one request is handled.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *Collector) add(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
}

// Notices returns what has been collected so far.
func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

type collectorKey struct{}

// WithCollector returns a context that collects notices into a new Collector.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// FromContext returns the Collector installed by WithCollector.
func FromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok
}

// ContextNotifier appends to the Collector found in the context, if any.
type ContextNotifier struct{}

func (ContextNotifier) Warn(ctx context.Context, msg string) {
	if c, ok := FromContext(ctx); ok {
		c.add(Notice{Level: LevelWarning, Message: msg})
	}
}
