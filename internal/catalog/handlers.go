package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/discount"
	"github.com/Checker-Finance/catalog-api/internal/events"
	"github.com/Checker-Finance/catalog-api/internal/fault"
	"github.com/Checker-Finance/catalog-api/internal/metrics"
	"github.com/Checker-Finance/catalog-api/pkg/logger"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// Handlers serves every catalog request type. Register wires it into a mediator.
type Handlers struct {
	repo      Repository
	discounts discount.Source
	events    events.Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// NewHandlers builds the handler set from deps, filling in defaults for the
// optional collaborators.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		repo:      deps.Repo,
		discounts: deps.Discounts,
		events:    deps.Events,
		now:       deps.Clock,
		logger:    deps.Logger,
	}
	if h.discounts == nil {
		h.discounts = discount.Config{}
	}
	if h.events == nil {
		h.events = events.Nop{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = logger.L()
	}
	return h
}

// Create inserts a new product. Stock starts at zero whatever the caller sent.
func (h *Handlers) Create(ctx context.Context, req CreateProduct) (model.ProductView, error) {
	if err := validateIdentity(req.Code, req.Name); err != nil {
		return model.ProductView{}, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p := &model.Product{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Price:       storedPrice(req.Price),
		Active:      active,
		CategoryID:  req.CategoryID,
		CreatedAt:   h.stamp(),
		Stock:       0,
	}
	if err := h.repo.Insert(ctx, p); err != nil {
		return model.ProductView{}, fault.Internal(err, "insert product")
	}

	logger.FromContext(ctx, h.logger).Info("catalog.product.created",
		zap.Int64("product_id", p.ID),
		zap.String("code", p.Code),
	)
	h.publish(ctx, events.ProductCreated, *p)
	return p.View(), nil
}

// GetByID returns one product. Prices are never discounted here.
func (h *Handlers) GetByID(ctx context.Context, req GetProductByID) (model.ProductView, error) {
	p, err := h.load(ctx, req.ID)
	if err != nil {
		return model.ProductView{}, err
	}
	return p.View(), nil
}

// List returns every product, applying the discount configured at call time.
func (h *Handlers) List(ctx context.Context, _ ListProducts) ([]model.ProductView, error) {
	products, err := h.repo.FindAll(ctx)
	if err != nil {
		return nil, fault.Internal(err, "list products")
	}

	views := make([]model.ProductView, 0, len(products))
	if len(products) == 0 {
		return views, nil
	}

	cfg, err := h.discounts.Load(ctx)
	if err != nil {
		return nil, fault.Internal(err, "load discount configuration")
	}

	discounted := 0
	for _, p := range products {
		v := p.View()
		if cfg.Eligible(p.CategoryID) {
			v.Price = discount.Apply(p.Price, p.CategoryID, cfg)
			discounted++
		}
		views = append(views, v)
	}
	metrics.AddDiscountApplied(discounted)

	logger.FromContext(ctx, h.logger).Debug("catalog.product.listed",
		zap.Int("count", len(views)),
		zap.Int("discounted", discounted),
		zap.Int("discount_percent", cfg.Percent),
		zap.Int64s("discount_categories", cfg.CategoryList()),
	)
	return views, nil
}

// Update replaces every mutable field of an existing product.
func (h *Handlers) Update(ctx context.Context, req UpdateProduct) (model.ProductView, error) {
	if err := validateIdentity(req.Code, req.Name); err != nil {
		return model.ProductView{}, err
	}
	p, err := h.load(ctx, req.ID)
	if err != nil {
		return model.ProductView{}, err
	}

	p.Code = req.Code
	p.Name = req.Name
	p.Description = req.Description
	p.Price = storedPrice(req.Price)
	p.Active = req.Active
	p.CategoryID = req.CategoryID
	p.Stock = req.Stock
	h.touch(p)

	if err := h.save(ctx, p); err != nil {
		return model.ProductView{}, err
	}

	logger.FromContext(ctx, h.logger).Info("catalog.product.updated",
		zap.Int64("product_id", p.ID),
	)
	h.publish(ctx, events.ProductUpdated, *p)
	return p.View(), nil
}

// UpdateStatus sets the active flag. A nil flag leaves the record untouched
// and returns it as stored.
func (h *Handlers) UpdateStatus(ctx context.Context, req UpdateProductStatus) (model.ProductView, error) {
	p, err := h.load(ctx, req.ID)
	if err != nil {
		return model.ProductView{}, err
	}
	if req.Active == nil {
		return p.View(), nil
	}

	p.Active = *req.Active
	h.touch(p)
	if err := h.save(ctx, p); err != nil {
		return model.ProductView{}, err
	}

	logger.FromContext(ctx, h.logger).Info("catalog.product.status_changed",
		zap.Int64("product_id", p.ID),
		zap.Bool("active", p.Active),
	)
	h.publish(ctx, events.ProductStatusChanged, *p)
	return p.View(), nil
}

// Delete removes a product.
func (h *Handlers) Delete(ctx context.Context, req DeleteProduct) (struct{}, error) {
	p, err := h.load(ctx, req.ID)
	if err != nil {
		return struct{}{}, err
	}
	if err := h.repo.Remove(ctx, p); err != nil {
		if errors.Is(err, ErrVanished) {
			return struct{}{}, fault.NotFound("product %d not found", p.ID)
		}
		return struct{}{}, fault.Internal(err, "delete product")
	}

	logger.FromContext(ctx, h.logger).Info("catalog.product.deleted",
		zap.Int64("product_id", p.ID),
	)
	h.publish(ctx, events.ProductDeleted, *p)
	return struct{}{}, nil
}

func (h *Handlers) load(ctx context.Context, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, fault.NotFound("product %d not found", id)
	}
	p, err := h.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fault.Internal(err, "find product")
	}
	if p == nil {
		return nil, fault.NotFound("product %d not found", id)
	}
	return p, nil
}

func (h *Handlers) save(ctx context.Context, p *model.Product) error {
	err := h.repo.Update(ctx, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrVanished):
		return fault.NotFound("product %d not found", p.ID)
	default:
		return fault.Internal(err, "update product")
	}
}

// touch stamps the modification time. The stamp never goes backwards, even if
// the clock does.
func (h *Handlers) touch(p *model.Product) {
	stamp := h.stamp()
	if stamp.Before(p.CreatedAt) {
		stamp = p.CreatedAt
	}
	if p.UpdatedAt != nil && stamp.Before(*p.UpdatedAt) {
		stamp = *p.UpdatedAt
	}
	p.UpdatedAt = &stamp
}

// stamp is the current time at the precision the stores keep (microseconds),
// so a returned view matches what a later read yields.
func (h *Handlers) stamp() time.Time {
	return h.now().UTC().Truncate(time.Microsecond)
}

// storedPrice rounds to the two decimal places of the precio column, half away
// from zero as NUMERIC(18,2) does.
func storedPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(2)
}

func (h *Handlers) publish(ctx context.Context, t events.Type, p model.Product) {
	if err := h.events.Publish(ctx, events.New(ctx, t, p, h.now())); err != nil {
		logger.FromContext(ctx, h.logger).Warn("catalog.event.publish_failed",
			zap.String("type", string(t)),
			zap.Int64("product_id", p.ID),
			zap.Error(err),
		)
	}
}

func validateIdentity(code, name string) error {
	if strings.TrimSpace(code) == "" {
		return fault.InvalidArgument("codigo is required")
	}
	if strings.TrimSpace(name) == "" {
		return fault.InvalidArgument("nombre is required")
	}
	return nil
}
