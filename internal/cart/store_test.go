package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/notice"
	"github.com/fjod/storefront/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockTracker struct {
	m     sync.Mutex
	items []domain.CartItem
}

func (m *mockTracker) AddToCart(_ context.Context, item domain.CartItem) {
	m.m.Lock()
	defer m.m.Unlock()
	m.items = append(m.items, item)
}

type mockNotifier struct {
	messages []string
}

func (m *mockNotifier) Warn(_ context.Context, msg string) {
	m.messages = append(m.messages, msg)
}

type failingStorage struct {
	storage.Storage
}

func (failingStorage) Set(context.Context, string, string) error {
	return errors.New("quota exceeded")
}

// unreachableStorage fails every read the way a dropped connection or a
// cancelled request does.
type unreachableStorage struct {
	storage.Storage
}

func (unreachableStorage) Get(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", errors.New("connection refused")
}

func newStore(t *testing.T, ctx context.Context, st storage.Storage, opts ...Option) *Store {
	t.Helper()
	s, err := NewStore(ctx, st, opts...)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func shirt() domain.Product {
	return domain.Product{
		ID:         "p1",
		Name:       "Shirt",
		Price:      200000,
		TotalStock: intPtr(5),
	}
}

func TestAdd_NewLine(t *testing.T) {
	ctx := context.Background()
	tracker := &mockTracker{}
	sut := newStore(t, ctx, storage.NewMemoryStorage(), WithTracker(tracker))

	err := sut.Add(ctx, shirt(), nil, 2, nil)
	require.NoError(t, err)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ItemID)
	assert.Nil(t, items[0].VariantID)
	assert.Equal(t, int64(200000), items[0].Price)
	assert.Equal(t, 2, items[0].Qty)
	assert.Equal(t, 5, items[0].Stock)
	assert.Len(t, tracker.items, 1)
}

func TestAdd_DefaultsQuantityToOne(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage())

	require.NoError(t, sut.Add(ctx, shirt(), nil, 0, nil))
	assert.Equal(t, 1, sut.Count())
}

func TestAdd_MergesSameItem(t *testing.T) {
	ctx := context.Background()
	tracker := &mockTracker{}
	sut := newStore(t, ctx, storage.NewMemoryStorage(), WithTracker(tracker))

	for _, q := range []int{1, 2, 2} {
		require.NoError(t, sut.Add(ctx, shirt(), nil, q, nil))
	}

	items := sut.Items()
	require.Len(t, items, 1, "no duplicate lines for one item")
	assert.Equal(t, 5, items[0].Qty)
	// quantity bumps are not tracked
	assert.Len(t, tracker.items, 1)
}

func TestAdd_VariantMakesSeparateLine(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage())
	p := shirt()
	red := domain.Variant{ID: "red-m", Info: "Red / M", StockQuantity: intPtr(3), Image: strPtr("red.png")}

	require.NoError(t, sut.Add(ctx, p, nil, 1, nil))
	require.NoError(t, sut.Add(ctx, p, &red, 1, nil))

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "p1-red-m", items[1].ItemID)
	assert.Equal(t, "red-m", *items[1].VariantID)
	assert.Equal(t, "Red / M", items[1].VariantInfo)
	assert.Equal(t, "red.png", *items[1].Image)
	assert.Equal(t, 3, items[1].Stock, "variant stock wins over product stock")
}

func TestAdd_OverStockLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	notifier := &mockNotifier{}
	tracker := &mockTracker{}
	sut := newStore(t, ctx, st, WithNotifier(notifier), WithTracker(tracker))

	require.NoError(t, sut.Add(ctx, shirt(), nil, 4, nil))
	before, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	itemsBefore := sut.Items()

	err = sut.Add(ctx, shirt(), nil, 2, nil)
	require.ErrorIs(t, err, ErrStockExceeded)

	after, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, cmp.Diff(itemsBefore, sut.Items()))
	assert.Len(t, notifier.messages, 1)
	assert.Len(t, tracker.items, 1)
}

func TestAdd_NewLineOverStock(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage())

	err := sut.Add(ctx, shirt(), nil, 6, nil)
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Empty(t, sut.Items())
}

func TestAdd_StockCeilingFallback(t *testing.T) {
	p := domain.Product{ID: "p2", Name: "Mug", Price: 50000}

	assert.Equal(t, DefaultStockCeiling, stockCeiling(p, nil))
	assert.Equal(t, DefaultStockCeiling, stockCeiling(p, &domain.Variant{ID: "v"}))
	p.TotalStock = intPtr(7)
	assert.Equal(t, 7, stockCeiling(p, &domain.Variant{ID: "v"}))
	assert.Equal(t, 0, stockCeiling(p, &domain.Variant{ID: "v", StockQuantity: intPtr(0)}))
}

func TestResolvePrice(t *testing.T) {
	tests := []struct {
		name     string
		product  domain.Product
		override *int64
		want     int64
	}{
		{"override wins", domain.Product{Price: 100, SalePrice: int64Ptr(80)}, int64Ptr(50), 50},
		{"sale price", domain.Product{Price: 100, SalePrice: int64Ptr(80)}, nil, 80},
		{"base price", domain.Product{Price: 100}, nil, 100},
		{"no price", domain.Product{}, nil, 0},
		{"zero override", domain.Product{Price: 100}, int64Ptr(0), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolvePrice(tc.product, tc.override))
		})
	}
}

func TestCountAndTotal(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage())
	mug := domain.Product{ID: "p2", Name: "Mug", Price: 50000, SalePrice: int64Ptr(45000)}

	require.NoError(t, sut.Add(ctx, shirt(), nil, 2, nil))
	require.NoError(t, sut.Add(ctx, mug, nil, 3, nil))
	require.NoError(t, sut.Add(ctx, shirt(), nil, 1, int64Ptr(1)))

	assert.Equal(t, 6, sut.Count())
	assert.Equal(t, int64(3*200000+3*45000), sut.Total())

	var count int
	var total int64
	for _, it := range sut.Items() {
		count += it.Qty
		total += it.Price * int64(it.Qty)
	}
	assert.Equal(t, count, sut.Count())
	assert.Equal(t, total, sut.Total())
}

func TestUpdateQty(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	sut := newStore(t, ctx, storage.NewMemoryStorage(), WithNotifier(notifier))
	require.NoError(t, sut.Add(ctx, shirt(), nil, 1, nil))

	require.NoError(t, sut.UpdateQty(ctx, "p1", 4))
	assert.Equal(t, 4, sut.Count())

	err := sut.UpdateQty(ctx, "p1", 6)
	require.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 4, sut.Count())
	assert.Len(t, notifier.messages, 1)

	assert.ErrorIs(t, sut.UpdateQty(ctx, "nope", 2), ErrItemNotFound)

	require.NoError(t, sut.UpdateQty(ctx, "p1", 0))
	assert.Empty(t, sut.Items())
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	sut := newStore(t, ctx, st)
	mug := domain.Product{ID: "p2", Name: "Mug", Price: 50000}

	require.NoError(t, sut.Add(ctx, shirt(), nil, 1, nil))
	require.NoError(t, sut.Add(ctx, mug, nil, 1, nil))

	sut.Remove(ctx, "p1")
	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ItemID)

	sut.Remove(ctx, "missing")
	assert.Len(t, sut.Items(), 1)

	sut.Clear(ctx)
	assert.Empty(t, sut.Items())
	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	first := newStore(t, ctx, st)
	red := domain.Variant{ID: "red", Info: "Red", StockQuantity: intPtr(2)}

	require.NoError(t, first.Add(ctx, domain.Product{ID: "p9", Name: "Hat", Price: 10}, nil, 1, nil))
	require.NoError(t, first.Add(ctx, shirt(), &red, 2, nil))
	require.NoError(t, first.Add(ctx, shirt(), nil, 3, nil))

	reloaded := newStore(t, ctx, st)
	if diff := cmp.Diff(first.Items(), reloaded.Items()); diff != "" {
		t.Fatalf("reloaded cart differs (-want +got):\n%s", diff)
	}
}

func TestPersistence_StoredShape(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	sut := newStore(t, ctx, st)

	require.NoError(t, sut.Add(ctx, shirt(), nil, 1, nil))

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"itemId": "p1", "productId": "p1", "variantId": null, "name": "Shirt",
		"price": 200000, "image": null, "variantInfo": "", "qty": 1, "stock": 5
	}]`, raw)
}

func TestLoad_CorruptStorageFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, "[{broken"))

	core, logs := observer.New(zapcore.ErrorLevel)
	sut := newStore(t, ctx, st, WithLogger(logging.NewZapLogger(zap.New(core))))

	assert.Empty(t, sut.Items())
	assert.Equal(t, 1, logs.FilterMessage("failed to load cart, starting empty").Len())

	// the next change overwrites the corrupt value
	require.NoError(t, sut.Add(ctx, shirt(), nil, 1, nil))
	reloaded := newStore(t, ctx, st)
	assert.Len(t, reloaded.Items(), 1)
}

func TestLoad_ReadFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, `[{"itemId":"p1","productId":"p1","qty":3,"stock":5}]`))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := NewStore(cancelled, unreachableStorage{st})
	require.ErrorIs(t, err, context.Canceled)

	_, err = NewStore(ctx, unreachableStorage{st})
	require.ErrorContains(t, err, "load cart")

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"qty":3`, "stored cart is left alone")
}

func TestAdd_ItemIDConflict(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage())
	plain := domain.Product{ID: "p1-red", Name: "Red scarf", Price: 10}
	red := domain.Variant{ID: "red", Info: "Red"}

	require.NoError(t, sut.Add(ctx, plain, nil, 1, nil))

	err := sut.Add(ctx, shirt(), &red, 1, nil)
	require.ErrorIs(t, err, ErrItemIDConflict)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1-red", items[0].ProductID)
	assert.Equal(t, 1, items[0].Qty)
}

func TestPersist_WriteFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.ErrorLevel)
	sut := newStore(t, ctx, failingStorage{storage.NewMemoryStorage()},
		WithLogger(logging.NewZapLogger(zap.New(core))))

	require.NoError(t, sut.Add(ctx, shirt(), nil, 1, nil))

	assert.Len(t, sut.Items(), 1, "in-memory state still changes")
	assert.Equal(t, 1, logs.FilterMessage("failed to persist cart").Len())
}

func TestAdd_WarningReachesContextCollector(t *testing.T) {
	ctx, collector := notice.WithCollector(context.Background())
	sut := newStore(t, ctx, storage.NewMemoryStorage())

	require.Error(t, sut.Add(ctx, shirt(), nil, 10, nil))

	notices := collector.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, notice.LevelWarning, notices[0].Level)
	assert.Contains(t, notices[0].Message, "Shirt")
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage())
	p := domain.Product{ID: "p1", Name: "Shirt", Price: 1, TotalStock: intPtr(100)}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sut.Add(ctx, p, nil, 1, nil)
		}()
	}
	wg.Wait()

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 50, items[0].Qty)
}
