// Package compare keeps the bounded list of products a session has picked
// for side-by-side comparison.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/storage"
)

const (
	StorageKey = "compare"
	MaxEntries = 4
)

// AddResult is the three-way outcome of Add.
type AddResult int

const (
	Added AddResult = iota
	AlreadyPresent
	LimitReached
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	case LimitReached:
		return "limit"
	default:
		return "unknown"
	}
}

type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	entries []domain.Product
	log     logging.Logger
}

// NewStore loads the compare list from st. A corrupt list starts empty; a
// failed read is returned.
func NewStore(ctx context.Context, st storage.Storage, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	s := &Store{storage: st, log: log}

	var entries []domain.Product
	err := storage.LoadJSON(ctx, st, StorageKey, &entries)
	switch {
	case err == nil:
		s.entries = entries
	case errors.Is(err, storage.ErrNotFound):
	case errors.Is(err, storage.ErrCorrupt):
		log.Error(ctx, "failed to load compare list, starting empty", "error", err)
	default:
		return nil, fmt.Errorf("load compare list: %w", err)
	}
	return s, nil
}

// Add appends product unless its id is already listed or the list is full.
func (s *Store) Add(ctx context.Context, product domain.Product) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(product.ID) >= 0 {
		return AlreadyPresent
	}
	if len(s.entries) >= MaxEntries {
		return LimitReached
	}

	s.entries = append(s.entries, product)
	s.persist(ctx)
	return Added
}

func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(id); idx >= 0 {
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	}
	s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.persist(ctx)
}

// Items returns a copy of the list in insertion order.
func (s *Store) Items() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Product, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(ctx context.Context) {
	entries := s.entries
	if entries == nil {
		entries = []domain.Product{}
	}
	if err := storage.SaveJSON(ctx, s.storage, StorageKey, entries); err != nil {
		s.log.Error(ctx, "failed to persist compare list", "error", err)
	}
}
