package compare

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(i int) domain.Product {
	return domain.Product{
		ID:    fmt.Sprintf("p%d", i),
		Name:  fmt.Sprintf("Phone %d", i),
		Price: int64(i) * 1000,
		Attributes: map[string]any{
			"screen": "6.1in",
		},
	}
}

type unreachableStorage struct {
	storage.Storage
}

func (unreachableStorage) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func newStore(t *testing.T, ctx context.Context, st storage.Storage, log logging.Logger) *Store {
	t.Helper()
	s, err := NewStore(ctx, st, log)
	require.NoError(t, err)
	return s
}

func TestAdd_UpToLimit(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage(), nil)

	for i := 1; i <= MaxEntries; i++ {
		assert.Equal(t, Added, sut.Add(ctx, product(i)))
	}

	assert.Equal(t, LimitReached, sut.Add(ctx, product(5)))
	assert.Len(t, sut.Items(), MaxEntries)
}

func TestAdd_Duplicate(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	sut := newStore(t, ctx, st, nil)

	require.Equal(t, Added, sut.Add(ctx, product(1)))
	before, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)

	assert.Equal(t, AlreadyPresent, sut.Add(ctx, product(1)))

	after, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, sut.Items(), 1)
}

func TestAdd_DuplicateCheckedBeforeLimit(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage(), nil)
	for i := 1; i <= MaxEntries; i++ {
		sut.Add(ctx, product(i))
	}

	assert.Equal(t, AlreadyPresent, sut.Add(ctx, product(2)))
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	sut := newStore(t, ctx, storage.NewMemoryStorage(), nil)
	for i := 1; i <= 3; i++ {
		sut.Add(ctx, product(i))
	}

	sut.Remove(ctx, "p2")
	ids := []string{}
	for _, p := range sut.Items() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p1", "p3"}, ids)

	sut.Clear(ctx)
	assert.Empty(t, sut.Items())
	assert.Equal(t, Added, sut.Add(ctx, product(9)))
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	first := newStore(t, ctx, st, nil)
	for _, i := range []int{3, 1, 2} {
		first.Add(ctx, product(i))
	}

	reloaded := newStore(t, ctx, st, nil)
	if diff := cmp.Diff(first.Items(), reloaded.Items()); diff != "" {
		t.Fatalf("reloaded list differs (-want +got):\n%s", diff)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, "oops"))

	sut := newStore(t, ctx, st, nil)
	assert.Empty(t, sut.Items())
}

func TestLoad_ReadFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, `[{"id":"p1"}]`))

	_, err := NewStore(ctx, unreachableStorage{st}, nil)
	require.ErrorContains(t, err, "load compare list")

	raw, err := st.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1"}]`, raw)
}

func TestAddResult_String(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "already_present", AlreadyPresent.String())
	assert.Equal(t, "limit", LimitReached.String())
}
