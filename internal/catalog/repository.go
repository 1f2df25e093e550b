// Package catalog implements the product lifecycle operations dispatched through the mediator.
package catalog

import (
	"context"
	"errors"

	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// ErrVanished is returned by Repository.Update and Repository.Remove when the
// record was deleted after it was loaded.
var ErrVanished = errors.New("product no longer exists")

// Repository is the persistence port the handlers depend on. Every write is
// atomic on its own; there is no version check between a read and the write
// that follows it.
type Repository interface {
	// FindByID returns nil, nil when no product has that id.
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	// FindAll returns every product in storage order.
	FindAll(ctx context.Context) ([]model.Product, error)
	// Insert stores p and assigns p.ID.
	Insert(ctx context.Context, p *model.Product) error
	// Update persists every mutable field of p.
	Update(ctx context.Context, p *model.Product) error
	// Remove deletes p.
	Remove(ctx context.Context, p *model.Product) error
}
