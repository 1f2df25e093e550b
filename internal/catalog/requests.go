package catalog

import (
	"github.com/shopspring/decimal"
)

// CreateProduct adds a product to the catalog. Stock always starts at zero.
type CreateProduct struct {
	Code        string
	Name        string
	Description *string
	Price       decimal.Decimal
	Active      *bool // nil means active
	CategoryID  int64
}

// GetProductByID reads one product, without discount.
type GetProductByID struct {
	ID int64
}

// ListProducts reads the whole catalog with the current discount applied.
type ListProducts struct{}

// UpdateProduct replaces every mutable field of a product.
type UpdateProduct struct {
	ID          int64
	Code        string
	Name        string
	Description *string
	Price       decimal.Decimal
	Active      bool
	CategoryID  int64
	Stock       int
}

// UpdateProductStatus sets the active flag when Active is non-nil and otherwise
// only reads the product back.
type UpdateProductStatus struct {
	ID     int64
	Active *bool
}

// DeleteProduct removes a product.
type DeleteProduct struct {
	ID int64
}

// Requests lists one value of every request type served by this package.
func Requests() []any {
	return []any{
		CreateProduct{},
		GetProductByID{},
		ListProducts{},
		UpdateProduct{},
		UpdateProductStatus{},
		DeleteProduct{},
	}
}
