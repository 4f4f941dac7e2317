package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment status constants. Transitions are guarded by the state machine in
// the services package; completed/refunded/cancelled never move backwards.
const (
	PaymentPending    = "pending"
	PaymentInitiated  = "initiated"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
	PaymentCancelled  = "cancelled"
)

// Mobile money networks supported by PayGate Global.
const (
	NetworkFlooz  = "FLOOZ"
	NetworkTMoney = "TMONEY"
)

type Payment struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	OrderID uint  `gorm:"index;not null" json:"order_id"`
	Order   Order `gorm:"foreignKey:OrderID" json:"-"`

	// Identifier is issued by us and echoed back in webhooks; TxReference is
	// issued by PayGate; PaymentReference is the FLOOZ/TMONEY receipt number.
	Identifier       string `gorm:"uniqueIndex;size:100" json:"identifier"`
	TxReference      string `gorm:"size:100" json:"tx_reference"`
	PaymentReference string `gorm:"size:100" json:"payment_reference"`

	Status              string          `gorm:"size:20;default:pending" json:"status"`
	Amount              decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	Currency            string          `gorm:"size:3;default:XOF" json:"currency"`
	PhoneNumber         string          `gorm:"size:20" json:"phone_number"`
	Network             string          `gorm:"size:10" json:"network"`
	Description         string          `json:"description"`
	PaymentMethodDetail string          `gorm:"size:100" json:"payment_method_detail"`

	ErrorMessage string  `json:"error_message,omitempty"`
	RawRequest   JSONMap `gorm:"type:jsonb" json:"-"`
	RawResponse  JSONMap `gorm:"type:jsonb" json:"-"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
