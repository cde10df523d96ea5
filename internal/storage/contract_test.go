package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract checks the behaviour every backend has to share.
func runContract(t *testing.T, st Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := st.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "cart", `[{"itemId":"1"}]`))
		v, err := st.Get(ctx, "cart")
		require.NoError(t, err)
		assert.Equal(t, `[{"itemId":"1"}]`, v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "theme", "light"))
		require.NoError(t, st.Set(ctx, "theme", "dark"))
		v, err := st.Get(ctx, "theme")
		require.NoError(t, err)
		assert.Equal(t, "dark", v)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, st.Set(ctx, "gone", "x"))
		require.NoError(t, st.Remove(ctx, "gone"))
		_, err := st.Get(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove missing key is not an error", func(t *testing.T) {
		assert.NoError(t, st.Remove(ctx, "never-set"))
	})
}
