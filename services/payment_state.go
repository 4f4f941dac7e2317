package services

import (
	"time"

	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
	"gorm.io/gorm"
)

// paymentTransitions maps each payment status to the statuses it may move
// to. failed -> completed covers a late gateway confirmation arriving after
// a timed-out direct call was recorded; the identifier remains the source
// of truth. Nothing leaves completed except the explicit refund action.
var paymentTransitions = map[string][]string{
	models.PaymentPending:    {models.PaymentInitiated, models.PaymentProcessing, models.PaymentCompleted, models.PaymentFailed, models.PaymentCancelled},
	models.PaymentInitiated:  {models.PaymentProcessing, models.PaymentCompleted, models.PaymentFailed, models.PaymentCancelled},
	models.PaymentProcessing: {models.PaymentCompleted, models.PaymentFailed, models.PaymentCancelled},
	models.PaymentFailed:     {models.PaymentCompleted},
	models.PaymentCompleted:  {models.PaymentRefunded},
	models.PaymentRefunded:   {},
	models.PaymentCancelled:  {},
}

// CanTransition reports whether a payment may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CompletionSignal carries the gateway fields absorbed when a payment is
// confirmed, whether the confirmation came over a webhook or a status poll.
type CompletionSignal struct {
	TxReference         string
	PaymentReference    string
	PaymentMethodDetail string
	PhoneNumber         string
	Raw                 models.JSONMap
}

// CompletePayment is the single transition used by both the webhook path
// and the poll path. It marks the payment completed, stamps paid_at and
// reconciles the owning order in one transaction, so no observer can see a
// completed payment with an unpaid order.
//
// Re-applying a success signal to an already completed payment is a no-op.
// The guard runs as a compare-and-set UPDATE, so when a webhook and a poll
// race, exactly one of them performs the mutation.
func CompletePayment(db *gorm.DB, payment *models.Payment, signal CompletionSignal) error {
	if payment.Status == models.PaymentCompleted {
		utils.LogInfo("Payment %s already completed, ignoring duplicate success signal", payment.Identifier)
		return nil
	}
	if !CanTransition(payment.Status, models.PaymentCompleted) {
		return utils.ConflictError(utils.ErrCodeInvalidTransition,
			"Payment cannot be completed from status "+payment.Status)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":  models.PaymentCompleted,
			"paid_at": now,
		}
		if signal.TxReference != "" {
			updates["tx_reference"] = signal.TxReference
		}
		if signal.PaymentReference != "" {
			updates["payment_reference"] = signal.PaymentReference
		}
		if signal.PaymentMethodDetail != "" {
			updates["payment_method_detail"] = signal.PaymentMethodDetail
		}
		if signal.PhoneNumber != "" {
			updates["phone_number"] = signal.PhoneNumber
		}
		if signal.Raw != nil {
			updates["raw_response"] = signal.Raw
		}

		completable := []string{
			models.PaymentPending,
			models.PaymentInitiated,
			models.PaymentProcessing,
			models.PaymentFailed,
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", payment.ID, completable).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent webhook or poll won the race. The winner has
			// already reconciled the order.
			utils.LogInfo("Payment %s completed concurrently, no further mutation", payment.Identifier)
			return nil
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ?", payment.OrderID).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusPaid,
				"status":         models.OrderStatusConfirmed,
			}).Error; err != nil {
			return err
		}

		payment.Status = models.PaymentCompleted
		payment.PaidAt = &now
		if signal.TxReference != "" {
			payment.TxReference = signal.TxReference
		}
		if signal.PaymentReference != "" {
			payment.PaymentReference = signal.PaymentReference
		}
		if signal.PaymentMethodDetail != "" {
			payment.PaymentMethodDetail = signal.PaymentMethodDetail
		}
		if signal.PhoneNumber != "" {
			payment.PhoneNumber = signal.PhoneNumber
		}
		if signal.Raw != nil {
			payment.RawResponse = signal.Raw
		}

		utils.LogInfo("Payment %s completed, order %d confirmed", payment.Identifier, payment.OrderID)
		return nil
	})
}

// RefundPayment applies the administrative refund action, the only legal
// exit from completed. The payment and order move together.
func RefundPayment(db *gorm.DB, payment *models.Payment) error {
	if !CanTransition(payment.Status, models.PaymentRefunded) {
		return utils.ConflictError(utils.ErrCodeInvalidTransition,
			"Only completed payments can be refunded")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentCompleted).
			Update("status", models.PaymentRefunded)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ConflictError(utils.ErrCodeInvalidTransition,
				"Only completed payments can be refunded")
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ?", payment.OrderID).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusRefunded,
				"status":         models.OrderStatusRefunded,
			}).Error; err != nil {
			return err
		}

		payment.Status = models.PaymentRefunded
		utils.LogInfo("Payment %s refunded, order %d marked refunded", payment.Identifier, payment.OrderID)
		return nil
	})
}
