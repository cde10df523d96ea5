// Package cart keeps a session's shopping cart in memory and mirrors every
// change to the session storage.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/notice"
	"github.com/fjod/storefront/internal/storage"
)

const (
	StorageKey = "cart"

	// DefaultStockCeiling applies when neither the variant nor the product
	// reports stock.
	DefaultStockCeiling = 9999
)

var (
	ErrStockExceeded = errors.New("requested quantity exceeds stock")
	ErrItemNotFound  = errors.New("item not found in cart")
	// ErrItemIDConflict is returned when another product already holds the
	// line key the added product maps to.
	ErrItemIDConflict = errors.New("item id already used by another product")
)

// Tracker receives the "add to cart" analytics event.
type Tracker interface {
	AddToCart(ctx context.Context, item domain.CartItem)
}

type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	items   []domain.CartItem
	loaded  bool

	notifier notice.Notifier
	tracker  Tracker
	log      logging.Logger
}

type Option func(*Store)

func WithNotifier(n notice.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithTracker(t Tracker) Option {
	return func(s *Store) { s.tracker = t }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore loads the cart from st. A corrupt stored cart is logged and
// replaced by an empty one; a failed read is returned so the stored cart is
// never overwritten by a store that could not see it.
func NewStore(ctx context.Context, st storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{
		storage:  st,
		notifier: notice.ContextNotifier{},
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.loaded = true
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var items []domain.CartItem
	err := storage.LoadJSON(ctx, s.storage, StorageKey, &items)
	switch {
	case err == nil:
		s.items = items
	case errors.Is(err, storage.ErrNotFound):
	case errors.Is(err, storage.ErrCorrupt):
		s.log.Error(ctx, "failed to load cart, starting empty", "error", err)
	default:
		return fmt.Errorf("load cart: %w", err)
	}
	return nil
}

// Add puts quantity units of product (and variant, if given) into the cart.
// A line for the same item is merged. When the merged quantity would exceed
// the stock ceiling a warning is raised, nothing changes and
// ErrStockExceeded is returned.
func (s *Store) Add(ctx context.Context, product domain.Product, variant *domain.Variant, quantity int, overridePrice *int64) error {
	if quantity < 1 {
		quantity = 1
	}

	var variantID *string
	if variant != nil {
		id := variant.ID
		variantID = &id
	}
	itemID := domain.ItemID(product.ID, variantID)
	ceiling := stockCeiling(product, variant)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(itemID)
	requested := quantity
	if idx >= 0 {
		if !s.items[idx].Holds(product.ID, variantID) {
			return fmt.Errorf("%w: %s", ErrItemIDConflict, itemID)
		}
		requested += s.items[idx].Qty
	}
	if requested > ceiling {
		s.notifier.Warn(ctx, fmt.Sprintf("Only %d of %q in stock", ceiling, product.Name))
		return fmt.Errorf("%w: %s requested %d, stock %d", ErrStockExceeded, itemID, requested, ceiling)
	}

	if idx >= 0 {
		s.items[idx].Qty = requested
		s.persist(ctx)
		return nil
	}

	item := domain.CartItem{
		ItemID:    itemID,
		ProductID: product.ID,
		VariantID: variantID,
		Name:      product.Name,
		Price:     resolvePrice(product, overridePrice),
		Image:     product.Image,
		Qty:       quantity,
		Stock:     ceiling,
	}
	if variant != nil {
		item.VariantInfo = variant.Info
		if variant.Image != nil {
			item.Image = variant.Image
		}
	}
	s.items = append(s.items, item)
	s.persist(ctx)

	// only new lines are tracked, quantity bumps are not
	if s.tracker != nil {
		s.tracker.AddToCart(ctx, item)
	}
	return nil
}

// UpdateQty sets the quantity of a line. Anything below 1 removes the line;
// anything above the stock recorded on the line is rejected with a warning.
func (s *Store) UpdateQty(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		s.Remove(ctx, itemID)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	line := s.items[idx]
	if qty > line.Stock {
		s.notifier.Warn(ctx, fmt.Sprintf("Only %d of %q in stock", line.Stock, line.Name))
		return fmt.Errorf("%w: %s requested %d, stock %d", ErrStockExceeded, itemID, qty, line.Stock)
	}

	s.items[idx].Qty = qty
	s.persist(ctx)
	return nil
}

func (s *Store) Remove(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(itemID); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.persist(ctx)
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Count is the total number of units in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		n += it.Qty
	}
	return n
}

// Total is the sum of price*qty over all lines.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.items {
		total += it.Subtotal()
	}
	return total
}

func (s *Store) indexOf(itemID string) int {
	for i := range s.items {
		if s.items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// persist writes the whole cart. Must be called with mu held.
func (s *Store) persist(ctx context.Context) {
	if !s.loaded {
		return
	}
	items := s.items
	if items == nil {
		items = []domain.CartItem{}
	}
	if err := storage.SaveJSON(ctx, s.storage, StorageKey, items); err != nil {
		s.log.Error(ctx, "failed to persist cart", "error", err)
	}
}

func stockCeiling(p domain.Product, v *domain.Variant) int {
	if v != nil && v.StockQuantity != nil {
		return *v.StockQuantity
	}
	if p.TotalStock != nil {
		return *p.TotalStock
	}
	return DefaultStockCeiling
}

func resolvePrice(p domain.Product, override *int64) int64 {
	switch {
	case override != nil:
		return *override
	case p.SalePrice != nil:
		return *p.SalePrice
	default:
		// zero when the catalog sent no price
		return p.Price
	}
}
