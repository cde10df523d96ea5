package domain

// CartItem is one line of a session cart. The JSON shape is what gets
// persisted, so renaming a tag breaks carts already in storage.
type CartItem struct {
	ItemID      string  `json:"itemId"`
	ProductID   string  `json:"productId"`
	VariantID   *string `json:"variantId"`
	Name        string  `json:"name"`
	Price       int64   `json:"price"`
	Image       *string `json:"image"`
	VariantInfo string  `json:"variantInfo"`
	Qty         int     `json:"qty"`
	Stock       int     `json:"stock"`
}

// Subtotal is price times quantity.
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Qty)
}

// ItemID builds the cart key for a product and optional variant.
func ItemID(productID string, variantID *string) string {
	if variantID == nil || *variantID == "" {
		return productID
	}
	return productID + "-" + *variantID
}

// Holds reports whether the line is for exactly this product and variant.
// Different pairs can map to the same ItemID ("a-b" + nil, "a" + "b").
func (i CartItem) Holds(productID string, variantID *string) bool {
	return i.ProductID == productID && deref(i.VariantID) == deref(variantID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
