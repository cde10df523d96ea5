package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/storage"
)

const SessionKey = "auth_session"

// LoginResult tells the caller a code is on its way.
type LoginResult struct {
	Email     string
	ExpiresAt time.Time
}

// Service runs the mock login: password check with lockout, then a
// one-time code, then a signed session token kept in storage.
type Service struct {
	storage  storage.Storage
	lockout  *Lockout
	otp      *OTP
	verifier Verifier
	tokens   *TokenIssuer
	now      func() time.Time
	log      logging.Logger
}

type Deps struct {
	Storage  storage.Storage
	Policy   Policy
	Verifier Verifier
	Tokens   *TokenIssuer
	Sender   Sender
	Now      func() time.Time
	Log      logging.Logger
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.Verifier == nil {
		d.Verifier = AcceptAllVerifier{}
	}
	if d.Sender == nil {
		d.Sender = LogSender{Log: d.Log}
	}
	return &Service{
		storage:  d.Storage,
		lockout:  NewLockout(d.Storage, d.Policy, d.Now, d.Log),
		otp:      NewOTP(d.Storage, d.Sender, d.Now),
		verifier: d.Verifier,
		tokens:   d.Tokens,
		now:      d.Now,
		log:      d.Log,
	}
}

func (s *Service) Lockout() *Lockout { return s.lockout }
func (s *Service) OTP() *OTP         { return s.otp }

// Login checks the password for account. A locked account gets a
// *LockedError before the password is looked at; a wrong password records a
// failure and returns a *CredentialsError.
func (s *Service) Login(ctx context.Context, account, password string) (LoginResult, error) {
	if st := s.lockout.IsLocked(ctx, account); st.Locked {
		return LoginResult{}, &LockedError{Seconds: st.Seconds}
	}

	id, err := s.verifier.Verify(ctx, account, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			return LoginResult{}, fmt.Errorf("verify credentials: %w", err)
		}
		rec := s.lockout.RecordFail(ctx, account)
		s.log.Warn(ctx, "login failed", "account", normalizeKey(account), "fails", rec.Fails)
		return LoginResult{}, &CredentialsError{Fails: rec.Fails, Lock: s.lockout.IsLocked(ctx, account)}
	}

	s.lockout.ClearFail(ctx, account)
	session, err := s.otp.Start(ctx, id.Email)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Email: session.Email, ExpiresAt: time.UnixMilli(session.ExpiresAt)}, nil
}

// ResendOTP issues a new code for the account that already has one pending.
func (s *Service) ResendOTP(ctx context.Context, email string) (LoginResult, error) {
	pending, err := s.otp.Pending(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if pending.Email != normalizeKey(email) {
		return LoginResult{}, ErrOTPEmailMismatch
	}

	session, err := s.otp.Start(ctx, pending.Email)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Email: session.Email, ExpiresAt: time.UnixMilli(session.ExpiresAt)}, nil
}

// CompleteOTP verifies the code and stores a signed session.
func (s *Service) CompleteOTP(ctx context.Context, email, code string) (domain.AuthSession, error) {
	if err := s.otp.Verify(ctx, email, code); err != nil {
		return domain.AuthSession{}, err
	}

	id, err := s.verifier.Lookup(ctx, email)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("lookup identity: %w", err)
	}
	token, err := s.tokens.Sign(id)
	if err != nil {
		return domain.AuthSession{}, err
	}

	session := domain.AuthSession{
		Token:       token,
		Account:     id.Account,
		Email:       id.Email,
		Permissions: id.Permissions,
		IssuedAt:    s.now().UnixMilli(),
	}
	if err := storage.SaveJSON(ctx, s.storage, SessionKey, session); err != nil {
		return domain.AuthSession{}, fmt.Errorf("store session: %w", err)
	}
	s.log.Info(ctx, "login completed", "account", id.Account)
	return session, nil
}

// Session returns the stored session if its token is still valid. An
// expired or tampered token is dropped.
func (s *Service) Session(ctx context.Context) (domain.AuthSession, error) {
	var session domain.AuthSession
	err := storage.LoadJSON(ctx, s.storage, SessionKey, &session)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.AuthSession{}, ErrNotAuthenticated
	}
	if err != nil {
		s.log.Error(ctx, "failed to load session", "error", err)
		return domain.AuthSession{}, ErrNotAuthenticated
	}

	if _, err := s.tokens.Verify(session.Token); err != nil {
		if rmErr := s.storage.Remove(ctx, SessionKey); rmErr != nil {
			s.log.Error(ctx, "failed to drop stale session", "error", rmErr)
		}
		return domain.AuthSession{}, ErrNotAuthenticated
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.storage.Remove(ctx, SessionKey); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
