package services

import (
	"errors"

	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
	"gorm.io/gorm"
)

// WebhookPayload is the typed shape of a PayGate confirmation callback.
// The binding tags reject a payload missing any required field before the
// processor touches any state.
type WebhookPayload struct {
	TxReference      string  `json:"tx_reference" binding:"required"`
	Identifier       string  `json:"identifier" binding:"required"`
	Amount           float64 `json:"amount" binding:"required"`
	PaymentMethod    string  `json:"payment_method" binding:"required"`
	PhoneNumber      string  `json:"phone_number" binding:"required"`
	PaymentReference string  `json:"payment_reference"`
	Datetime         string  `json:"datetime"`
}

func (p WebhookPayload) raw() models.JSONMap {
	raw := models.JSONMap{
		"tx_reference":   p.TxReference,
		"identifier":     p.Identifier,
		"amount":         p.Amount,
		"payment_method": p.PaymentMethod,
		"phone_number":   p.PhoneNumber,
	}
	if p.PaymentReference != "" {
		raw["payment_reference"] = p.PaymentReference
	}
	if p.Datetime != "" {
		raw["datetime"] = p.Datetime
	}
	return raw
}

// ProcessWebhook absorbs a gateway confirmation. It is idempotent by
// identifier: PayGate retransmits callbacks, and delivering the same
// notification N times leaves the payment and order exactly as one
// delivery would.
func (s *PaymentService) ProcessWebhook(payload WebhookPayload) (*models.Payment, error) {
	var payment models.Payment
	if err := s.DB.Where("identifier = ?", payload.Identifier).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.LogError("Webhook for unknown identifier %s", payload.Identifier)
			return nil, utils.NotFoundError(utils.ErrCodePaymentNotFound, "Paiement non trouvé")
		}
		return nil, err
	}

	if payment.Status == models.PaymentCompleted {
		utils.LogInfo("Duplicate webhook for completed payment %s absorbed", payment.Identifier)
		return &payment, nil
	}

	signal := CompletionSignal{
		TxReference:         payload.TxReference,
		PaymentReference:    payload.PaymentReference,
		PaymentMethodDetail: payload.PaymentMethod,
		PhoneNumber:         payload.PhoneNumber,
		Raw:                 payload.raw(),
	}
	if err := CompletePayment(s.DB, &payment, signal); err != nil {
		return nil, err
	}

	utils.LogInfo("Payment %s completed via webhook", payment.Identifier)
	return &payment, nil
}
