package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingMethod struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
	IsActive  bool            `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
