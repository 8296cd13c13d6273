package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

// FindUserByID returns (nil, nil) when the user does not exist.
func (r *GormRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	ok, err := first(r.DB.WithContext(ctx), &user, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	ok, err := first(r.DB.WithContext(ctx), &user, "email = ?", strings.ToLower(strings.TrimSpace(email)))
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createUser(tx, u)
	})
}

// CreateUsers inserts users in slice order, all or nothing.
func (r *GormRepo) CreateUsers(ctx context.Context, users []*models.User) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			if err := createUser(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func createUser(tx *gorm.DB, u *models.User) error {
	var count int64
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("email %s: %w", email, ErrConflict)
	}

	if err := tx.Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", email, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *GormRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.DB.WithContext(ctx).Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
