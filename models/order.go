package models

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order status constants
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Order payment status constants
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"index;not null" json:"user_id"`
	User             User            `gorm:"foreignKey:UserID" json:"-"`
	OrderNumber      string          `gorm:"uniqueIndex;size:20" json:"order_number"`
	Status           string          `gorm:"size:20;default:pending" json:"status"`
	PaymentStatus    string          `gorm:"size:20;default:pending" json:"payment_status"`
	ShippingAddress  JSONMap         `gorm:"type:jsonb" json:"shipping_address"`
	BillingAddress   JSONMap         `gorm:"type:jsonb" json:"billing_address"`
	ShippingMethodID *uint           `json:"shipping_method_id"`
	ShippingMethod   *ShippingMethod `gorm:"foreignKey:ShippingMethodID" json:"shipping_method,omitempty"`
	ShippingPrice    decimal.Decimal `gorm:"type:numeric(10,2)" json:"shipping_price"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(10,2)" json:"subtotal"`
	TaxAmount        decimal.Decimal `gorm:"type:numeric(10,2)" json:"tax_amount"`
	Total            decimal.Decimal `gorm:"type:numeric(10,2)" json:"total"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	ProductID uint            `gorm:"not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
}

// TotalPrice returns quantity * unit price for the line.
func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

const orderNumberDigits = "0123456789"

// BeforeCreate assigns the human-facing order number. It is never changed
// afterwards.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderNumber == "" {
		digits := make([]byte, 10)
		for i := range digits {
			digits[i] = orderNumberDigits[rand.Intn(len(orderNumberDigits))]
		}
		o.OrderNumber = "ORD" + string(digits)
	}
	return nil
}
