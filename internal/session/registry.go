// Package session builds and caches the per-session state stores.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/compare"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/prefs"
	"github.com/fjod/storefront/internal/storage"
	"golang.org/x/sync/singleflight"
)

var ErrEmptySessionID = errors.New("session id is empty")

// Tracker receives "add to cart" events together with the session they
// happened in.
type Tracker interface {
	AddToCart(ctx context.Context, sessionID string, item domain.CartItem)
}

// Workspace is everything one session owns. All stores share the same
// scoped storage.
type Workspace struct {
	ID      string
	Cart    *cart.Store
	Compare *compare.Store
	Prefs   *prefs.Store
	Auth    *auth.Service
}

type Deps struct {
	Storage storage.Storage
	Tracker Tracker
	// Auth is copied for every session; its Storage is replaced by the
	// session scope.
	Auth auth.Deps
	// IdleTTL drops cached workspaces nobody used for that long. Zero keeps
	// them until the process exits.
	IdleTTL time.Duration
	// LoadTimeout bounds one load; the caller's cancellation does not.
	LoadTimeout time.Duration
	Now         func() time.Time
	Log         logging.Logger
}

type entry struct {
	ws       *Workspace
	lastUsed atomic.Int64 // unix nanos
}

type Registry struct {
	deps Deps

	mu         sync.RWMutex
	workspaces map[string]*entry
	sfg        singleflight.Group // collapses concurrent first loads
}

func NewRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LoadTimeout == 0 {
		deps.LoadTimeout = 10 * time.Second
	}
	return &Registry{deps: deps, workspaces: make(map[string]*entry)}
}

// Workspace returns the cached workspace for id, loading it from storage on
// first use. A load that cannot read storage is returned as an error and not
// cached.
func (r *Registry) Workspace(ctx context.Context, id string) (*Workspace, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}

	if ws, ok := r.cached(id); ok {
		return ws, nil
	}

	v, err, _ := r.sfg.Do(id, func() (interface{}, error) {
		if ws, ok := r.cached(id); ok {
			return ws, nil
		}

		// the load is shared, so one caller hanging up must not fail it
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.deps.LoadTimeout)
		defer cancel()
		ws, err := r.load(loadCtx, id)
		if err != nil {
			return nil, err
		}

		e := &entry{ws: ws}
		e.lastUsed.Store(r.deps.Now().UnixNano())
		r.mu.Lock()
		r.workspaces[id] = e
		r.mu.Unlock()
		return ws, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return v.(*Workspace), nil
}

func (r *Registry) cached(id string) (*Workspace, bool) {
	r.mu.RLock()
	e, ok := r.workspaces[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.lastUsed.Store(r.deps.Now().UnixNano())
	return e.ws, true
}

func (r *Registry) load(ctx context.Context, id string) (*Workspace, error) {
	log := r.deps.Log.With("session_id", id)
	st := storage.NewScoped(r.deps.Storage, id)

	c, err := r.newCart(ctx, id, st, log)
	if err != nil {
		return nil, err
	}
	list, err := compare.NewStore(ctx, st, log)
	if err != nil {
		return nil, err
	}

	authDeps := r.deps.Auth
	authDeps.Storage = st
	authDeps.Log = log

	log.Debug(ctx, "session loaded")
	return &Workspace{
		ID:      id,
		Cart:    c,
		Compare: list,
		Prefs:   prefs.NewStore(st),
		Auth:    auth.NewService(authDeps),
	}, nil
}

func (r *Registry) newCart(ctx context.Context, id string, st storage.Storage, log logging.Logger) (*cart.Store, error) {
	opts := []cart.Option{cart.WithLogger(log)}
	if r.deps.Tracker != nil {
		opts = append(opts, cart.WithTracker(sessionTracker{id: id, tracker: r.deps.Tracker}))
	}
	return cart.NewStore(ctx, st, opts...)
}

// ClearCart empties the cart of session id. A session that is not cached is
// cleared in storage without being cached.
func (r *Registry) ClearCart(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptySessionID
	}
	if ws, ok := r.cached(id); ok {
		ws.Cart.Clear(ctx)
		return nil
	}

	log := r.deps.Log.With("session_id", id)
	c, err := r.newCart(ctx, id, storage.NewScoped(r.deps.Storage, id), log)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	c.Clear(ctx)

	// a load racing with us may have cached the cart we just cleared
	if ws, ok := r.cached(id); ok {
		ws.Cart.Clear(ctx)
	}
	return nil
}

// Evict drops workspaces idle for longer than IdleTTL and returns how many
// were dropped. Their state stays in storage.
func (r *Registry) Evict() int {
	if r.deps.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.deps.Now().Add(-r.deps.IdleTTL).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.workspaces {
		if e.lastUsed.Load() < cutoff {
			delete(r.workspaces, id)
			n++
		}
	}
	return n
}

// Run evicts idle workspaces every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.deps.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				r.deps.Log.Debug(ctx, "evicted idle sessions", "count", n)
			}
		}
	}
}

// Len returns the number of cached sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

type sessionTracker struct {
	id      string
	tracker Tracker
}

func (t sessionTracker) AddToCart(ctx context.Context, item domain.CartItem) {
	t.tracker.AddToCart(ctx, t.id, item)
}
