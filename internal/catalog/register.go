package catalog

import (
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/discount"
	"github.com/Checker-Finance/catalog-api/internal/events"
	"github.com/Checker-Finance/catalog-api/internal/mediator"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// Deps are the collaborators of the catalog handlers. Only Repo is required.
type Deps struct {
	Repo      Repository
	Discounts discount.Source
	Events    events.Publisher
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Register installs one handler per catalog request type on m.
func Register(m *mediator.Mediator, deps Deps) *Handlers {
	h := NewHandlers(deps)

	mediator.Register(m, mediator.HandlerFunc[CreateProduct, model.ProductView](h.Create))
	mediator.Register(m, mediator.HandlerFunc[GetProductByID, model.ProductView](h.GetByID))
	mediator.Register(m, mediator.HandlerFunc[ListProducts, []model.ProductView](h.List))
	mediator.Register(m, mediator.HandlerFunc[UpdateProduct, model.ProductView](h.Update))
	mediator.Register(m, mediator.HandlerFunc[UpdateProductStatus, model.ProductView](h.UpdateStatus))
	mediator.Register(m, mediator.HandlerFunc[DeleteProduct, struct{}](h.Delete))

	return h
}
