// Package events publishes catalog change notifications to a message broker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Checker-Finance/catalog-api/pkg/logger"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// Type names a catalog change.
type Type string

const (
	ProductCreated       Type = "product.created"
	ProductUpdated       Type = "product.updated"
	ProductStatusChanged Type = "product.status_changed"
	ProductDeleted       Type = "product.deleted"
)

// Event is the payload published for every successful catalog mutation.
type Event struct {
	ID         uuid.UUID          `json:"id"`
	Type       Type               `json:"type"`
	ProductID  int64              `json:"productId"`
	Product    *model.ProductView `json:"product,omitempty"`
	TraceID    string             `json:"traceId,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// New builds an event for p. Deleted products carry no snapshot.
func New(ctx context.Context, t Type, p model.Product, at time.Time) Event {
	e := Event{
		ID:         uuid.New(),
		Type:       t,
		ProductID:  p.ID,
		TraceID:    logger.TraceID(ctx),
		OccurredAt: at.UTC(),
	}
	if t != ProductDeleted {
		v := p.View()
		e.Product = &v
	}
	return e
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
