package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/storage"
)

const LockoutKey = "auth_lockouts"

// Lockout counts failed logins per account key and blocks further attempts
// for the cooldown the policy assigns. All records live in one JSON map.
type Lockout struct {
	mu      sync.Mutex
	storage storage.Storage
	policy  Policy
	now     func() time.Time
	log     logging.Logger
}

func NewLockout(st storage.Storage, policy Policy, now func() time.Time, log logging.Logger) *Lockout {
	if policy == nil {
		policy = EscalatingPolicy{}
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Lockout{storage: st, policy: policy, now: now, log: log}
}

// RecordFail bumps the failure count for key and starts its cooldown.
func (l *Lockout) RecordFail(ctx context.Context, key string) domain.LockoutRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, writable := l.load(ctx)
	key = normalizeKey(key)

	rec := records[key]
	rec.Fails++
	rec.Until = l.now().Add(l.policy.Cooldown(rec.Fails)).UnixMilli()
	records[key] = rec

	if !writable {
		return rec
	}
	if err := storage.SaveJSON(ctx, l.storage, LockoutKey, records); err != nil {
		l.log.Error(ctx, "failed to persist lockouts", "error", err)
	}
	return rec
}

// IsLocked reports whether key is inside its cooldown and how many whole
// seconds (rounded up) remain.
func (l *Lockout) IsLocked(ctx context.Context, key string) domain.LockState {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, _ := l.load(ctx)
	rec, ok := records[normalizeKey(key)]
	if !ok {
		return domain.LockState{}
	}
	now := l.now().UnixMilli()
	if now >= rec.Until {
		return domain.LockState{}
	}
	remaining := rec.Until - now
	return domain.LockState{Locked: true, Seconds: int((remaining + 999) / 1000)}
}

// ClearFail forgets key; called after a successful login.
func (l *Lockout) ClearFail(ctx context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, writable := l.load(ctx)
	if !writable {
		return
	}
	delete(records, normalizeKey(key))
	if err := storage.SaveJSON(ctx, l.storage, LockoutKey, records); err != nil {
		l.log.Error(ctx, "failed to persist lockouts", "error", err)
	}
}

// load returns the stored records. writable is false when the read itself
// failed, in which case writing back would drop the records it could not see.
func (l *Lockout) load(ctx context.Context) (records map[string]domain.LockoutRecord, writable bool) {
	records = map[string]domain.LockoutRecord{}
	err := storage.LoadJSON(ctx, l.storage, LockoutKey, &records)
	switch {
	case err == nil, errors.Is(err, storage.ErrNotFound):
	case errors.Is(err, storage.ErrCorrupt):
		l.log.Error(ctx, "failed to load lockouts", "error", err)
		return map[string]domain.LockoutRecord{}, true
	default:
		l.log.Error(ctx, "failed to load lockouts", "error", err)
		return map[string]domain.LockoutRecord{}, false
	}
	if records == nil {
		records = map[string]domain.LockoutRecord{}
	}
	return records, true
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
