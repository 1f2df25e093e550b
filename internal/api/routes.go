// Package api exposes the catalog over HTTP.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/catalog-api/internal/catalog"
	"github.com/Checker-Finance/catalog-api/internal/fault"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// ProductsPath is the collection path; single products live under ProductsPath/{id}.
const ProductsPath = "/v1/api/products"

// Binder gives a route access to the inbound request without tying it to a framework.
type Binder interface {
	// Param returns a path parameter, or "" when absent.
	Param(name string) string
	// Decode unmarshals the JSON body into v.
	Decode(v any) error
}

// Route maps one method and path to the mediator request it produces.
type Route struct {
	Method string
	Path   string
	Status int // success status
	Build  func(b Binder) (any, error)
	// Location, when set, yields the Location header for a successful result.
	Location func(result any) string
}

type createProductBody struct {
	Codigo      string          `json:"codigo"`
	Nombre      string          `json:"nombre"`
	Descripcion *string         `json:"descripcion"`
	Precio      decimal.Decimal `json:"precio"`
	Activo      *bool           `json:"activo"`
	CategoriaID int64           `json:"categoriaId"`
}

type updateProductBody struct {
	Codigo        string          `json:"codigo"`
	Nombre        string          `json:"nombre"`
	Descripcion   *string         `json:"descripcion"`
	Precio        decimal.Decimal `json:"precio"`
	Activo        bool            `json:"activo"`
	CategoriaID   int64           `json:"categoriaId"`
	CantidadStock int             `json:"cantidadStock"`
}

type patchStatusBody struct {
	Activo *bool `json:"activo"`
}

// Routes returns the product route table.
func Routes() []Route {
	item := ProductsPath + "/:id"
	return []Route{
		{
			Method: http.MethodGet,
			Path:   ProductsPath,
			Status: http.StatusOK,
			Build: func(Binder) (any, error) {
				return catalog.ListProducts{}, nil
			},
		},
		{
			Method: http.MethodGet,
			Path:   item,
			Status: http.StatusOK,
			Build: func(b Binder) (any, error) {
				id, err := productID(b)
				if err != nil {
					return nil, err
				}
				return catalog.GetProductByID{ID: id}, nil
			},
		},
		{
			Method: http.MethodPost,
			Path:   ProductsPath,
			Status: http.StatusCreated,
			Build: func(b Binder) (any, error) {
				var body createProductBody
				if err := b.Decode(&body); err != nil {
					return nil, err
				}
				return catalog.CreateProduct{
					Code:        body.Codigo,
					Name:        body.Nombre,
					Description: body.Descripcion,
					Price:       body.Precio,
					Active:      body.Activo,
					CategoryID:  body.CategoriaID,
				}, nil
			},
			Location: func(res any) string {
				v, ok := res.(model.ProductView)
				if !ok {
					return ""
				}
				return fmt.Sprintf("%s/%d", ProductsPath, v.ID)
			},
		},
		{
			Method: http.MethodPut,
			Path:   item,
			Status: http.StatusOK,
			Build: func(b Binder) (any, error) {
				id, err := productID(b)
				if err != nil {
					return nil, err
				}
				var body updateProductBody
				if err := b.Decode(&body); err != nil {
					return nil, err
				}
				return catalog.UpdateProduct{
					ID:          id,
					Code:        body.Codigo,
					Name:        body.Nombre,
					Description: body.Descripcion,
					Price:       body.Precio,
					Active:      body.Activo,
					CategoryID:  body.CategoriaID,
					Stock:       body.CantidadStock,
				}, nil
			},
		},
		{
			Method: http.MethodPatch,
			Path:   item + "/status",
			Status: http.StatusOK,
			Build: func(b Binder) (any, error) {
				id, err := productID(b)
				if err != nil {
					return nil, err
				}
				var body patchStatusBody
				if err := b.Decode(&body); err != nil {
					return nil, err
				}
				return catalog.UpdateProductStatus{ID: id, Active: body.Activo}, nil
			},
		},
		{
			Method: http.MethodDelete,
			Path:   item,
			Status: http.StatusNoContent,
			Build: func(b Binder) (any, error) {
				id, err := productID(b)
				if err != nil {
					return nil, err
				}
				return catalog.DeleteProduct{ID: id}, nil
			},
		},
	}
}

// productID parses the id path parameter. An id that is not an integer can
// never name a product, so it is reported as not found.
func productID(b Binder) (int64, error) {
	raw := b.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fault.NotFound("product %q not found", raw)
	}
	return id, nil
}
