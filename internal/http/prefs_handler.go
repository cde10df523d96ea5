package http

import (
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/prefs"
)

type ThemeDTO struct {
	Theme string `json:"theme"`
}

func (s *Server) getTheme(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, r, http.StatusOK, ThemeDTO{Theme: ws.Prefs.Theme(r.Context())})
}

func (s *Server) setTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeDTO
	if !s.decode(w, r, &req) {
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Prefs.SetTheme(r.Context(), req.Theme); err != nil {
		if errors.Is(err, prefs.ErrUnknownTheme) {
			s.respondError(w, r, http.StatusBadRequest, "unknown_theme", "theme must be light or dark")
			return
		}
		s.log.Error(r.Context(), "failed to save theme", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	s.respondJSON(w, r, http.StatusOK, ThemeDTO{Theme: req.Theme})
}
