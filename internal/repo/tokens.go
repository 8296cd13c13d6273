package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) SaveRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) FindRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	ok, err := first(r.DB.WithContext(ctx), &token, "jti = ?", jti)
	if err != nil || !ok {
		return nil, err
	}
	return &token, nil
}

func refreshUsable(tx *gorm.DB, jti, tokenHash string) error {
	var token models.RefreshToken
	ok, err := first(tx, &token, "jti = ?", jti)
	if err != nil {
		return err
	}
	if !ok || token.Token != tokenHash {
		return fmt.Errorf("refresh token: %w", ErrNotFound)
	}
	if token.Revoked || token.ExpiresAt < time.Now().Unix() {
		return ErrTokenRevoked
	}
	return nil
}

// RotateRefreshToken revokes the presented token and stores its successor
// in one transaction.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI, oldHash string, next *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := refreshUsable(tx, oldJTI, oldHash); err != nil {
			return err
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("jti = ? AND revoked = ?", oldJTI, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTokenRevoked
		}

		return tx.Create(next).Error
	})
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", tokenHash).
		Update("revoked", true).Error
}
