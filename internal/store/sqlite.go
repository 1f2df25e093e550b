package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Checker-Finance/catalog-api/internal/catalog"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// productRecord maps the products table for gorm. The timestamp fields are not
// named CreatedAt/UpdatedAt so gorm leaves them to the caller. precio is kept
// as text: a numeric column in SQLite holds REAL and loses digits.
type productRecord struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Code        string          `gorm:"column:codigo;not null"`
	Name        string          `gorm:"column:nombre;not null"`
	Description *string         `gorm:"column:descripcion"`
	Price       decimal.Decimal `gorm:"column:precio;type:text;not null"`
	Active      bool            `gorm:"column:activo;not null"`
	CategoryID  int64           `gorm:"column:categoria_id;not null"`
	Created     time.Time       `gorm:"column:fecha_creacion;not null"`
	Updated     *time.Time      `gorm:"column:fecha_actualizacion"`
	Stock       int             `gorm:"column:cantidad_stock;not null"`
}

func (productRecord) TableName() string { return table }

func toRecord(p *model.Product) productRecord {
	return productRecord{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Active:      p.Active,
		CategoryID:  p.CategoryID,
		Created:     p.CreatedAt,
		Updated:     p.UpdatedAt,
		Stock:       p.Stock,
	}
}

func (r productRecord) toModel() model.Product {
	p := model.Product{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Active:      r.Active,
		CategoryID:  r.CategoryID,
		CreatedAt:   r.Created.UTC(),
		Stock:       r.Stock,
	}
	if r.Updated != nil {
		u := r.Updated.UTC()
		p.UpdatedAt = &u
	}
	return p
}

// SQLiteStore keeps products in a SQLite database through gorm. It backs local
// runs and the acceptance suite.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (and optionally migrates) the database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string, migrate bool) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if migrate {
		if err := s.Migrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewSQLite wraps an already opened gorm handle.
func NewSQLite(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Migrate() error {
	if err := s.db.AutoMigrate(&productRecord{}); err != nil {
		return fmt.Errorf("migrate %s: %w", table, err)
	}
	return nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	var rec productRecord
	res := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to find product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	p := rec.toModel()
	return &p, nil
}

func (s *SQLiteStore) FindAll(ctx context.Context) ([]model.Product, error) {
	var recs []productRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	out := make([]model.Product, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, p *model.Product) error {
	rec := toRecord(p)
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	p.ID = rec.ID
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, p *model.Product) error {
	rec := toRecord(p)
	res := s.db.WithContext(ctx).Model(&productRecord{}).
		Where("id = ?", p.ID).
		Select("*").Omit("id", "fecha_creacion").
		Updates(&rec)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.ErrVanished
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, p *model.Product) error {
	res := s.db.WithContext(ctx).Delete(&productRecord{}, "id = ?", p.ID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.ErrVanished
	}
	return nil
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
