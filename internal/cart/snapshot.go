package cart

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
)

// Snapshot is the copy of a cart kept in the remote store, one per owner.
type Snapshot struct {
	OwnerKey    string         `bson:"_id"          json:"ownerKey"`
	CartID      string         `bson:"cart_id"      json:"cartId"`
	Currency    string         `bson:"currency"     json:"currency"`
	Version     int64          `bson:"version"      json:"version"`
	Items       []SnapshotItem `bson:"items"        json:"items"`
	TotalAmount int64          `bson:"total_amount" json:"totalAmount"`
	CapturedAt  time.Time      `bson:"captured_at"  json:"capturedAt"`
}

type SnapshotItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Name      string    `bson:"name"       json:"name"`
	Quantity  int       `bson:"quantity"   json:"quantity"`
	UnitPrice int64     `bson:"unit_price" json:"unitPrice"`
	AddedAt   time.Time `bson:"added_at"   json:"addedAt"`
}

func SnapshotOf(ownerKey string, c *models.Cart, total int64) Snapshot {
	s := Snapshot{
		OwnerKey:    ownerKey,
		CartID:      c.ID.String(),
		Currency:    c.Currency,
		Version:     c.Version,
		Items:       make([]SnapshotItem, 0, len(c.Items)),
		TotalAmount: total,
		CapturedAt:  time.Now().UTC(),
	}
	for _, it := range c.Items {
		s.Items = append(s.Items, SnapshotItem{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			AddedAt:   it.AddedAt,
		})
	}
	return s
}

// CartItems converts the snapshot lines back, dropping lines with a
// non-positive quantity.
func (s Snapshot) CartItems() ([]models.CartItem, error) {
	out := make([]models.CartItem, 0, len(s.Items))
	for _, it := range s.Items {
		if it.Quantity <= 0 {
			continue
		}
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("snapshot item %q: %w", it.ProductID, err)
		}
		out = append(out, models.CartItem{
			ProductID: pid,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			AddedAt:   it.AddedAt,
		})
	}
	return out, nil
}
