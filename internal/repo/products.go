package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := r.DB.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sku %s: %w", p.SKU, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	ok, err := first(r.DB.WithContext(ctx), &p, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, activeOnly bool, offset, limit int) ([]models.Product, int64, error) {
	scope := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&models.Product{})
		if activeOnly {
			q = q.Where("active = ?", true)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	if err := scope().Order("name ASC, id ASC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}
