package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const OrderStatusNew = "new"

type Order struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"         json:"id"`
	UserID    uuid.UUID   `gorm:"type:uuid;index;not null"     json:"userId"`
	Status    string      `gorm:"not null"                     json:"status"`
	Currency  string      `gorm:"type:varchar(3);not null"     json:"currency"`
	Subtotal  int64       `gorm:"not null"                     json:"subtotal"`
	Tax       int64       `gorm:"not null"                     json:"tax"`
	Shipping  int64       `gorm:"not null"                     json:"shipping"`
	Total     int64       `gorm:"not null"                     json:"total"`
	Items     []OrderItem `gorm:"foreignKey:OrderID"           json:"items"`
	CreatedAt time.Time   `                                    json:"createdAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusNew
	}
	return nil
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"          json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null"      json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"            json:"productId"`
	Name      string    `gorm:"not null"                      json:"name"`
	Quantity  int       `gorm:"not null;check:quantity > 0"   json:"quantity"`
	UnitPrice int64     `gorm:"not null"                      json:"unitPrice"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// All lists every table for AutoMigrate, parents first.
func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
	}
}
