package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
)

type LoginRequestDTO struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

type VerifyOTPRequestDTO struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResendOTPRequestDTO struct {
	Email string `json:"email"`
}

type OTPChallengeResponse struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expiresAt"`
}

// AuthErrorResponse adds the lockout state to failed logins.
type AuthErrorResponse struct {
	ErrorResponse
	Fails int               `json:"fails,omitempty"`
	Lock  *domain.LockState `json:"lock,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Account) == "" {
		s.respondError(w, r, http.StatusBadRequest, "invalid_account", "account is required")
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	res, err := ws.Auth.Login(r.Context(), req.Account, req.Password)
	if err != nil {
		s.handleAuthError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, OTPChallengeResponse{Email: res.Email, ExpiresAt: res.ExpiresAt.UnixMilli()})
}

func (s *Server) lockout(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if strings.TrimSpace(account) == "" {
		s.respondError(w, r, http.StatusBadRequest, "invalid_account", "account query parameter is required")
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, r, http.StatusOK, ws.Auth.Lockout().IsLocked(r.Context(), account))
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequestDTO
	if !s.decode(w, r, &req) {
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	sess, err := ws.Auth.CompleteOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		s.handleAuthError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, sess)
}

func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequestDTO
	if !s.decode(w, r, &req) {
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	res, err := ws.Auth.ResendOTP(r.Context(), req.Email)
	if err != nil {
		s.handleAuthError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, OTPChallengeResponse{Email: res.Email, ExpiresAt: res.ExpiresAt.UnixMilli()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	sess, err := ws.Auth.Session(r.Context())
	if err != nil {
		s.handleAuthError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, sess)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Auth.Logout(r.Context()); err != nil {
		s.handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var lockedErr *auth.LockedError
	var credErr *auth.CredentialsError

	switch {
	case errors.As(err, &lockedErr):
		w.Header().Set("Retry-After", strconv.Itoa(lockedErr.Seconds))
		lock := domain.LockState{Locked: true, Seconds: lockedErr.Seconds}
		s.respondJSON(w, r, http.StatusTooManyRequests, AuthErrorResponse{
			ErrorResponse: ErrorResponse{Error: err.Error(), Code: "account_locked"},
			Lock:          &lock,
		})
	case errors.As(err, &credErr):
		lock := credErr.Lock
		s.respondJSON(w, r, http.StatusUnauthorized, AuthErrorResponse{
			ErrorResponse: ErrorResponse{Error: err.Error(), Code: "invalid_credentials"},
			Fails:         credErr.Fails,
			Lock:          &lock,
		})
	case errors.Is(err, auth.ErrNoPendingOTP):
		s.respondError(w, r, http.StatusNotFound, "otp_not_pending", err.Error())
	case errors.Is(err, auth.ErrOTPEmailMismatch):
		s.respondError(w, r, http.StatusBadRequest, "otp_email_mismatch", err.Error())
	case errors.Is(err, auth.ErrOTPExpired):
		s.respondError(w, r, http.StatusGone, "otp_expired", err.Error())
	case errors.Is(err, auth.ErrOTPInvalidCode):
		s.respondError(w, r, http.StatusUnauthorized, "otp_invalid", err.Error())
	case errors.Is(err, auth.ErrNotAuthenticated):
		s.respondError(w, r, http.StatusUnauthorized, "not_authenticated", err.Error())
	default:
		s.log.Error(r.Context(), "auth operation failed", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
