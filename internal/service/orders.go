package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
)

type OrderStore interface {
	ListOrders(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Order, error)
}

type OrdersService struct {
	Repo OrderStore
}

// ListOrders returns the user's orders, newest first.
func (s *OrdersService) ListOrders(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Order, error) {
	return s.Repo.ListOrders(ctx, userID, offset, limit)
}
