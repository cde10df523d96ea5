package auth

import (
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrNoPendingOTP       = errors.New("no pending verification code")
	ErrOTPEmailMismatch   = errors.New("verification code was issued for another account")
	ErrOTPExpired         = errors.New("verification code has expired")
	ErrOTPInvalidCode     = errors.New("verification code is incorrect")
	ErrInvalidCredentials = errors.New("invalid account or password")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidToken       = errors.New("invalid token")
)

// LockedError is returned while an account is in its cooldown window.
type LockedError struct {
	Seconds int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry in %d s", e.Seconds)
}

// CredentialsError reports a failed password check together with the lock
// state it produced. It matches ErrInvalidCredentials.
type CredentialsError struct {
	Fails int
	Lock  domain.LockState
}

func (e *CredentialsError) Error() string {
	if e.Lock.Locked {
		return fmt.Sprintf("%s, retry in %d s", ErrInvalidCredentials, e.Lock.Seconds)
	}
	return ErrInvalidCredentials.Error()
}

func (e *CredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}
