package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps anything that is not "admin" to RoleCustomer.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleCustomer
}

// Scan reads NULL and unknown values as RoleCustomer.
func (r *Role) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*r = RoleCustomer
	case string:
		*r = ParseRole(v)
	case []byte:
		*r = ParseRole(string(v))
	default:
		return fmt.Errorf("role: unsupported column type %T", value)
	}
	return nil
}

func (r Role) Value() (driver.Value, error) {
	return string(ParseRole(string(r))), nil
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(ParseRole(string(r))))
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*r = RoleCustomer
		return nil
	}
	*r = ParseRole(*s)
	return nil
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"   json:"id"`
	Name         string    `gorm:"not null"               json:"name"`
	Email        string    `gorm:"uniqueIndex;not null"   json:"email"`
	PasswordHash string    `gorm:"not null"               json:"-"`
	Role         Role      `gorm:"type:varchar(16)"       json:"role"`
	Verified     bool      `gorm:"not null"               json:"verified"`
	Phone        *string   `gorm:"type:varchar(32)"       json:"phone,omitempty"`
	CreatedAt    time.Time `gorm:"not null"               json:"createdAt"`
	UpdatedAt    time.Time `                              json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Role = ParseRole(string(u.Role))
	return nil
}

func (u *User) IsAdmin() bool {
	return u != nil && ParseRole(string(u.Role)) == RoleAdmin
}

type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"       json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"   json:"userId"`
	Token     string    `gorm:"uniqueIndex;not null"       json:"-"`
	JTI       string    `gorm:"uniqueIndex;not null"       json:"jti"`
	ExpiresAt int64     `gorm:"not null"                   json:"expiresAt"`
	Revoked   bool      `gorm:"not null"                   json:"revoked"`
	CreatedAt time.Time `                                  json:"createdAt"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
