package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is owned by the products service. It is fetched transiently to
// validate referenced ids and to enrich responses, never stored locally.
type Product struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ProductSet indexes a product-validation response by product id.
type ProductSet map[uuid.UUID]Product

// NewProductSet builds a ProductSet from a validation response.
func NewProductSet(products []Product) ProductSet {
	set := make(ProductSet, len(products))
	for _, p := range products {
		set[p.ID] = p
	}
	return set
}

// ByID looks up a product, reporting whether it resolved.
func (s ProductSet) ByID(id uuid.UUID) (Product, bool) {
	p, ok := s[id]
	return p, ok
}

// MissingFrom returns the ids in want that did not resolve. The products
// service omits unknown ids from its response rather than erroring, so
// callers must check for partial matches explicitly.
func (s ProductSet) MissingFrom(want []uuid.UUID) []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range want {
		if _, ok := s[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
