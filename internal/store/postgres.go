package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/catalog"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// PGStore keeps products in Postgres.
type PGStore struct {
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

const productColumns = `id, codigo, nombre, descripcion, precio, activo, categoria_id,
	fecha_creacion, fecha_actualizacion, cantidad_stock`

const schema = `
CREATE TABLE IF NOT EXISTS productos (
	id                  BIGSERIAL PRIMARY KEY,
	codigo              TEXT NOT NULL,
	nombre              TEXT NOT NULL,
	descripcion         TEXT NULL,
	precio              NUMERIC(18,2) NOT NULL DEFAULT 0,
	activo              BOOLEAN NOT NULL DEFAULT TRUE,
	categoria_id        BIGINT NOT NULL,
	fecha_creacion      TIMESTAMPTZ NOT NULL,
	fecha_actualizacion TIMESTAMPTZ NULL,
	cantidad_stock      INTEGER NOT NULL DEFAULT 0
);`

// NewPostgres opens a pool against pgURL and verifies connectivity.
func NewPostgres(ctx context.Context, pgURL string, pc PGPoolConfig, logger *zap.Logger) (*PGStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := poolConfig(pgURL, pc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &PGStore{PG: pool, logger: logger}, nil
}

func poolConfig(pgURL string, pc PGPoolConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}
	return cfg, nil
}

// EnsureSchema creates the products table when it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.PG.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

func (s *PGStore) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	row := s.PG.QueryRow(ctx, `SELECT `+productColumns+` FROM productos WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select product %d: %w", id, err)
	}
	return p, nil
}

func (s *PGStore) FindAll(ctx context.Context) ([]model.Product, error) {
	rows, err := s.PG.Query(ctx, `SELECT `+productColumns+` FROM productos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	results := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		results = append(results, *p)
	}
	return results, rows.Err()
}

func (s *PGStore) Insert(ctx context.Context, p *model.Product) error {
	err := s.PG.QueryRow(ctx, `
		INSERT INTO productos (
			codigo, nombre, descripcion, precio, activo, categoria_id,
			fecha_creacion, fecha_actualizacion, cantidad_stock
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.Code, p.Name, p.Description, p.Price, p.Active, p.CategoryID,
		p.CreatedAt, p.UpdatedAt, p.Stock).Scan(&p.ID)
	if err != nil {
		s.logger.Error("store.pg.insert_product_failed", zap.String("code", p.Code), zap.Error(err))
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, p *model.Product) error {
	tag, err := s.PG.Exec(ctx, `
		UPDATE productos SET
			codigo = $2, nombre = $3, descripcion = $4, precio = $5, activo = $6,
			categoria_id = $7, fecha_actualizacion = $8, cantidad_stock = $9
		WHERE id = $1
	`, p.ID, p.Code, p.Name, p.Description, p.Price, p.Active,
		p.CategoryID, p.UpdatedAt, p.Stock)
	if err != nil {
		s.logger.Error("store.pg.update_product_failed", zap.Int64("product_id", p.ID), zap.Error(err))
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVanished
	}
	return nil
}

func (s *PGStore) Remove(ctx context.Context, p *model.Product) error {
	tag, err := s.PG.Exec(ctx, `DELETE FROM productos WHERE id = $1`, p.ID)
	if err != nil {
		s.logger.Error("store.pg.delete_product_failed", zap.Int64("product_id", p.ID), zap.Error(err))
		return fmt.Errorf("delete product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVanished
	}
	return nil
}

func (s *PGStore) HealthCheck(ctx context.Context) error {
	if s.PG == nil {
		return fmt.Errorf("postgres not initialized")
	}
	if err := s.PG.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	return nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Price, &p.Active,
		&p.CategoryID, &p.CreatedAt, &p.UpdatedAt, &p.Stock); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if p.UpdatedAt != nil {
		u := p.UpdatedAt.UTC()
		p.UpdatedAt = &u
	}
	return &p, nil
}
