package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	PermissionCustomer = "customer"
	PermissionAdmin    = "admin"
)

// Identity is who a login resolved to.
type Identity struct {
	Account     string
	Email       string
	Permissions []string
}

// Verifier checks credentials. None of the implementations here talk to a
// real identity provider.
type Verifier interface {
	Verify(ctx context.Context, account, password string) (Identity, error)
	Lookup(ctx context.Context, email string) (Identity, error)
}

// AcceptAllVerifier lets every login through as a customer.
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) Verify(_ context.Context, account, _ string) (Identity, error) {
	key := normalizeKey(account)
	return Identity{Account: key, Email: key, Permissions: []string{PermissionCustomer}}, nil
}

func (v AcceptAllVerifier) Lookup(ctx context.Context, email string) (Identity, error) {
	return v.Verify(ctx, email, "")
}

// PasswordVerifier checks against a fixed set of back-office demo accounts
// keyed by email. Passwords are kept only as bcrypt hashes.
type PasswordVerifier struct {
	hashes map[string][]byte
}

// NewPasswordVerifier hashes the given plaintext passwords with cost.
func NewPasswordVerifier(accounts map[string]string, cost int) (*PasswordVerifier, error) {
	hashes := make(map[string][]byte, len(accounts))
	for account, password := range accounts {
		h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", account, err)
		}
		hashes[normalizeKey(account)] = h
	}
	return &PasswordVerifier{hashes: hashes}, nil
}

func (v *PasswordVerifier) Verify(_ context.Context, account, password string) (Identity, error) {
	key := normalizeKey(account)
	hash, ok := v.hashes[key]
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return v.identity(key), nil
}

func (v *PasswordVerifier) Lookup(_ context.Context, email string) (Identity, error) {
	key := normalizeKey(email)
	if _, ok := v.hashes[key]; !ok {
		return Identity{}, ErrInvalidCredentials
	}
	return v.identity(key), nil
}

func (v *PasswordVerifier) identity(key string) Identity {
	return Identity{Account: key, Email: key, Permissions: []string{PermissionAdmin}}
}
