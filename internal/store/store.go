// Package store provides the relational adapters behind catalog.Repository.
package store

import (
	"context"

	"github.com/Checker-Finance/catalog-api/internal/catalog"
)

// Store is a catalog.Repository with lifecycle hooks used by main and /health.
type Store interface {
	catalog.Repository
	HealthCheck(ctx context.Context) error
	Close() error
}

const table = "productos"

var (
	_ Store = (*PGStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
