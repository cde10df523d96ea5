package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/storage"
)

const (
	PendingOTPKey = "auth_pending_otp"
	OTPTTL        = 120 * time.Second
)

// Sender delivers a freshly issued code to the user.
type Sender interface {
	Send(ctx context.Context, email, code string) error
}

// LogSender stands in for a mail gateway: it writes the code to the log.
type LogSender struct {
	Log logging.Logger
}

func (s LogSender) Send(ctx context.Context, email, code string) error {
	s.Log.Info(ctx, "verification code issued", "email", email, "code", code)
	return nil
}

// OTP manages the single pending verification-code slot. A new code
// replaces whatever was pending.
type OTP struct {
	mu       sync.Mutex
	storage  storage.Storage
	sender   Sender
	now      func() time.Time
	generate func() (string, error)
}

func NewOTP(st storage.Storage, sender Sender, now func() time.Time) *OTP {
	if now == nil {
		now = time.Now
	}
	return &OTP{storage: st, sender: sender, now: now, generate: generateCode}
}

// Start issues a code for email, valid for OTPTTL.
func (o *OTP) Start(ctx context.Context, email string) (domain.OTPSession, error) {
	code, err := o.generate()
	if err != nil {
		return domain.OTPSession{}, fmt.Errorf("generate code: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	session := domain.OTPSession{
		Email:     normalizeKey(email),
		OTP:       code,
		ExpiresAt: o.now().Add(OTPTTL).UnixMilli(),
	}
	if err := storage.SaveJSON(ctx, o.storage, PendingOTPKey, session); err != nil {
		return domain.OTPSession{}, fmt.Errorf("store pending code: %w", err)
	}
	if o.sender != nil {
		if err := o.sender.Send(ctx, session.Email, code); err != nil {
			return domain.OTPSession{}, fmt.Errorf("send code: %w", err)
		}
	}
	return session, nil
}

// Pending returns the pending session, expired or not.
func (o *OTP) Pending(ctx context.Context) (domain.OTPSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending(ctx)
}

// Verify checks input against the pending code. Each failure has its own
// error and none of them consumes the session; success deletes it.
func (o *OTP) Verify(ctx context.Context, email, input string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	session, err := o.pending(ctx)
	if err != nil {
		return err
	}
	if session.Email != normalizeKey(email) {
		return ErrOTPEmailMismatch
	}
	if o.now().UnixMilli() > session.ExpiresAt {
		return ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(session.OTP), []byte(strings.TrimSpace(input))) != 1 {
		return ErrOTPInvalidCode
	}

	if err := o.storage.Remove(ctx, PendingOTPKey); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

func (o *OTP) pending(ctx context.Context) (domain.OTPSession, error) {
	var session domain.OTPSession
	err := storage.LoadJSON(ctx, o.storage, PendingOTPKey, &session)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.OTPSession{}, ErrNoPendingOTP
	}
	if err != nil {
		return domain.OTPSession{}, fmt.Errorf("load pending code: %w", err)
	}
	return session, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
