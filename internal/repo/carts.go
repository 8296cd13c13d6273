package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

func loadCart(tx *gorm.DB, query string, args ...any) (*models.Cart, error) {
	var cart models.Cart
	ok, err := first(tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("added_at ASC, id ASC")
	}), &cart, query, args...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cart: %w", ErrNotFound)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func bumpVersion(tx *gorm.DB, cartID uuid.UUID) error {
	res := tx.Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": tx.NowFunc(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart %s: %w", cartID, ErrNotFound)
	}
	return nil
}

// mutate runs fn and bumps the cart version in one transaction and returns
// the reloaded cart.
func (r *GormRepo) mutate(ctx context.Context, cartID uuid.UUID, fn func(tx *gorm.DB) error) (*models.Cart, error) {
	var cart *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		if err := bumpVersion(tx, cartID); err != nil {
			return err
		}
		var err error
		cart, err = loadCart(tx, "id = ?", cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// GetCart returns ErrNotFound when the owner has no cart yet.
func (r *GormRepo) GetCart(ctx context.Context, ownerKey string) (*models.Cart, error) {
	return loadCart(r.DB.WithContext(ctx), "owner_key = ?", ownerKey)
}

func (r *GormRepo) GetOrCreateCart(ctx context.Context, ownerKey string, userID *uuid.UUID, currency string) (*models.Cart, error) {
	var cart *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := models.Cart{OwnerKey: ownerKey, UserID: userID, Currency: currency}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_key"}},
			DoNothing: true,
		}).Create(&created).Error
		if err != nil {
			return err
		}
		cart, err = loadCart(tx, "owner_key = ?", ownerKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem merges quantity into an existing line or creates one. An existing
// line keeps the price it was first added at.
func (r *GormRepo) AddItem(ctx context.Context, cartID uuid.UUID, item models.CartItem) (*models.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cartID, item.ProductID).
			Update("quantity", gorm.Expr("quantity + ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		item.ID = uuid.Nil
		item.CartID = cartID
		return tx.Create(&item).Error
	})
}

func (r *GormRepo) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Update("quantity", quantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cart item %s: %w", productID, ErrNotFound)
		}
		return nil
	})
}

func (r *GormRepo) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		res := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&models.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cart item %s: %w", productID, ErrNotFound)
		}
		return nil
	})
}

// ClearCart removes every line and keeps the cart row.
func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	})
}

// ReplaceItems overwrites the lines and pins the version, used when a newer
// remote snapshot is adopted.
func (r *GormRepo) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem, version int64) (*models.Cart, error) {
	var cart *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		for _, it := range items {
			it.ID = uuid.Nil
			it.CartID = cartID
			if err := tx.Create(&it).Error; err != nil {
				return err
			}
		}
		res := tx.Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]any{
			"version":    version,
			"updated_at": tx.NowFunc(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cart %s: %w", cartID, ErrNotFound)
		}
		var err error
		cart, err = loadCart(tx, "id = ?", cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}
