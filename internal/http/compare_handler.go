package http

import (
	"net/http"

	"github.com/fjod/storefront/internal/compare"
	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type AddCompareRequestDTO struct {
	ProductID string `json:"productId"`
}

type CompareResponse struct {
	// Added is true, false (already listed) or "limit" on POST.
	Added interface{}      `json:"added,omitempty"`
	Items []domain.Product `json:"items"`
	Max   int              `json:"max"`
}

func addedValue(res compare.AddResult) interface{} {
	switch res {
	case compare.Added:
		return true
	case compare.LimitReached:
		return "limit"
	default:
		return false
	}
}

func (s *Server) getCompare(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, r, http.StatusOK, CompareResponse{Items: ws.Compare.Items(), Max: compare.MaxEntries})
}

func (s *Server) addCompare(w http.ResponseWriter, r *http.Request) {
	var req AddCompareRequestDTO
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		s.respondError(w, r, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	product, ok := s.fetchProduct(w, r, ws, req.ProductID)
	if !ok {
		return
	}

	res := ws.Compare.Add(r.Context(), *product)
	s.respondJSON(w, r, http.StatusOK, CompareResponse{
		Added: addedValue(res),
		Items: ws.Compare.Items(),
		Max:   compare.MaxEntries,
	})
}

func (s *Server) removeCompare(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ws.Compare.Remove(r.Context(), chi.URLParam(r, "id"))
	s.respondJSON(w, r, http.StatusOK, CompareResponse{Items: ws.Compare.Items(), Max: compare.MaxEntries})
}

func (s *Server) clearCompare(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ws.Compare.Clear(r.Context())
	s.respondJSON(w, r, http.StatusOK, CompareResponse{Items: ws.Compare.Items(), Max: compare.MaxEntries})
}
