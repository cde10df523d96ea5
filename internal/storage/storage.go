// Package storage is the key-value port the session stores persist through.
// Values are JSON strings; each store owns a distinct key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("key not found")
	// ErrCorrupt marks a stored value that exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt value")
)

// Storage defines the persistence port. Consumers define this interface, the
// backends (memory, Redis, MongoDB, SQL) implement it.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Scoped prefixes every key so several sessions can share one backend.
type Scoped struct {
	inner  Storage
	prefix string
}

func NewScoped(inner Storage, sessionID string) *Scoped {
	return &Scoped{inner: inner, prefix: fmt.Sprintf("session:%s:", sessionID)}
}

func (s *Scoped) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, s.prefix+key)
}

// LoadJSON decodes the value at key into v. A missing key returns
// ErrNotFound untouched and an undecodable value wraps ErrCorrupt, so
// callers can tell "empty" and "broken" from a failed read.
func LoadJSON(ctx context.Context, st Storage, key string, v any) error {
	raw, err := st.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", key, ErrCorrupt, err)
	}
	return nil
}

// SaveJSON encodes v and stores it at key.
func SaveJSON(ctx context.Context, st Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return st.Set(ctx, key, string(data))
}
