package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, the way catalog clients already consume them.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is the persisted catalog record.
type Product struct {
	ID          int64
	Code        string
	Name        string
	Description *string
	Price       decimal.Decimal
	Active      bool
	CategoryID  int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time // nil until the first mutation after creation
	Stock       int
}

// ProductView is the wire representation of a product returned by every catalog operation.
type ProductView struct {
	ID          int64           `json:"id"`
	Code        string          `json:"codigo"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Active      bool            `json:"activo"`
	CategoryID  int64           `json:"categoriaId"`
	CreatedAt   time.Time       `json:"fechaCreacion"`
	UpdatedAt   *time.Time      `json:"fechaActualizacion"`
	Stock       int             `json:"cantidadStock"`
}

// View maps the record to its wire shape. An absent description is rendered as "".
func (p Product) View() ProductView {
	v := ProductView{
		ID:         p.ID,
		Code:       p.Code,
		Name:       p.Name,
		Price:      p.Price,
		Active:     p.Active,
		CategoryID: p.CategoryID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Stock:      p.Stock,
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	return v
}
