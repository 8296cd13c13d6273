package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultCurrency = "USD"

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"          json:"id"`
	SKU         string    `gorm:"uniqueIndex;not null"          json:"sku"`
	Name        string    `gorm:"not null"                      json:"name"`
	Description string    `gorm:"not null"                      json:"description"`
	Price       int64     `gorm:"not null;check:price >= 0"     json:"price"`
	Currency    string    `gorm:"type:varchar(3);not null"      json:"currency"`
	Active      bool      `gorm:"not null"                      json:"active"`
	CreatedAt   time.Time `                                     json:"createdAt"`
	UpdatedAt   time.Time `                                     json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Cart is owned by either a signed-in user or a guest session, see OwnerKey.
// Totals are never stored.
type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"                     json:"id"`
	OwnerKey  string     `gorm:"uniqueIndex;not null"                     json:"-"`
	UserID    *uuid.UUID `gorm:"type:uuid;index"                          json:"userId,omitempty"`
	Currency  string     `gorm:"type:varchar(3);not null"                 json:"currency"`
	Version   int64      `gorm:"not null"                                 json:"version"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `                                                json:"createdAt"`
	UpdatedAt time.Time  `                                                json:"updatedAt"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                           json:"id"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product" json:"productId"`
	Name      string    `gorm:"not null"                                        json:"name"`
	Quantity  int       `gorm:"not null;check:quantity > 0"                     json:"quantity"`
	UnitPrice int64     `gorm:"not null"                                        json:"unitPrice"`
	AddedAt   time.Time `gorm:"not null"                                        json:"addedAt"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.AddedAt.IsZero() {
		i.AddedAt = tx.NowFunc()
	}
	return nil
}

func (i CartItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

func (CartItem) TableName() string {
	return "cart_items"
}
