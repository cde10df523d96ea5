package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/storefront/internal/notice"
)

type ErrorResponse struct {
	Error   string          `json:"error"`
	Code    string          `json:"code,omitempty"`
	Details string          `json:"details,omitempty"`
	Notices []notice.Notice `json:"notices,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := respondJSON(w, status, data); err != nil {
		s.log.Error(r.Context(), "failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.respondJSON(w, r, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Notices: notices(r),
	})
}

func notices(r *http.Request) []notice.Notice {
	if c, ok := notice.FromContext(r.Context()); ok {
		return c.Notices()
	}
	return nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
