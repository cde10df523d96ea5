package domain

// Product is a catalog snapshot. The catalog service owns it; the storefront
// only copies what it needs into cart lines and keeps whole snapshots for
// comparison.
type Product struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Price      int64          `json:"price"`
	SalePrice  *int64         `json:"salePrice,omitempty"`
	Image      *string        `json:"image,omitempty"`
	TotalStock *int           `json:"totalStock,omitempty"`
	Variants   []Variant      `json:"variants,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type Variant struct {
	ID            string  `json:"id"`
	Info          string  `json:"info"`
	StockQuantity *int    `json:"stockQuantity,omitempty"`
	Image         *string `json:"image,omitempty"`
}

// Variant looks up a variant by id.
func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}
