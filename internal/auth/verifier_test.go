package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAcceptAllVerifier(t *testing.T) {
	id, err := AcceptAllVerifier{}.Verify(context.Background(), " Shopper@X.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, Identity{Account: "shopper@x.com", Email: "shopper@x.com", Permissions: []string{PermissionCustomer}}, id)
}

func TestPasswordVerifier(t *testing.T) {
	ctx := context.Background()
	v, err := NewPasswordVerifier(map[string]string{"Admin@Shop.local": "admin123"}, bcrypt.MinCost)
	require.NoError(t, err)

	id, err := v.Verify(ctx, "admin@shop.local", "admin123")
	require.NoError(t, err)
	assert.Equal(t, []string{PermissionAdmin}, id.Permissions)

	_, err = v.Verify(ctx, "admin@shop.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.Verify(ctx, "nobody@shop.local", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	id, err = v.Lookup(ctx, "ADMIN@shop.local")
	require.NoError(t, err)
	assert.Equal(t, "admin@shop.local", id.Email)

	_, err = v.Lookup(ctx, "nobody@shop.local")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
