package http

import (
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/notice"
	"github.com/fjod/storefront/internal/session"
	"github.com/go-chi/chi/v5"
)

type AddItemRequestDTO struct {
	ProductID     string  `json:"productId"`
	VariantID     *string `json:"variantId,omitempty"`
	Qty           int     `json:"qty"`
	OverridePrice *int64  `json:"overridePrice,omitempty"`
}

type UpdateQtyRequestDTO struct {
	Qty int `json:"qty"`
}

type CartResponse struct {
	Items   []domain.CartItem `json:"items"`
	Count   int               `json:"count"`
	Total   int64             `json:"total"`
	Notices []notice.Notice   `json:"notices,omitempty"`
}

func cartResponse(r *http.Request, c *cart.Store) CartResponse {
	return CartResponse{
		Items:   c.Items(),
		Count:   c.Count(),
		Total:   c.Total(),
		Notices: notices(r),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, r, http.StatusOK, cartResponse(r, ws.Cart))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		s.respondError(w, r, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	if req.Qty < 0 {
		s.respondError(w, r, http.StatusBadRequest, "invalid_quantity", "qty must be positive")
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

	var variant *domain.Variant
	if req.VariantID != nil {
		v, found := product.Variant(*req.VariantID)
		if !found {
			s.respondError(w, r, http.StatusBadRequest, "invalid_variant", "variant does not belong to product")
			return
		}
		variant = &v
	}

	if err := ws.Cart.Add(r.Context(), *product, variant, req.Qty, req.OverridePrice); err != nil {
		s.handleCartError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusCreated, cartResponse(r, ws.Cart))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateQtyRequestDTO
	if !s.decode(w, r, &req) {
		return
	}

	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Cart.UpdateQty(r.Context(), chi.URLParam(r, "itemId"), req.Qty); err != nil {
		s.handleCartError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, cartResponse(r, ws.Cart))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ws.Cart.Remove(r.Context(), chi.URLParam(r, "itemId"))
	s.respondJSON(w, r, http.StatusOK, cartResponse(r, ws.Cart))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ws.Cart.Clear(r.Context())
	s.respondJSON(w, r, http.StatusOK, cartResponse(r, ws.Cart))
}

func (s *Server) handleCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		s.respondError(w, r, http.StatusConflict, "stock_exceeded", "requested quantity exceeds stock")
	case errors.Is(err, cart.ErrItemIDConflict):
		s.respondError(w, r, http.StatusConflict, "item_conflict", "another product already uses this cart line")
	case errors.Is(err, cart.ErrItemNotFound):
		s.respondError(w, r, http.StatusNotFound, "item_not_found", "item is not in the cart")
	default:
		s.log.Error(r.Context(), "cart operation failed", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// fetchProduct resolves id through the catalog, using the session's token
// when it has one.
func (s *Server) fetchProduct(w http.ResponseWriter, r *http.Request, ws *session.Workspace, id string) (*domain.Product, bool) {
	var token string
	if sess, err := ws.Auth.Session(r.Context()); err == nil {
		token = sess.Token
	}

	product, err := s.catalog.GetProduct(r.Context(), id, token)
	switch {
	case err == nil:
		return product, true
	case errors.Is(err, catalog.ErrProductNotFound):
		s.respondError(w, r, http.StatusNotFound, "product_not_found", "product not found")
	default:
		s.log.Error(r.Context(), "catalog lookup failed", "product_id", id, "error", err)
		s.respondError(w, r, http.StatusBadGateway, "catalog_unavailable", "could not reach the product catalog")
	}
	return nil, false
}
