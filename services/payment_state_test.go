package services

import (
	"testing"

	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.PaymentPending, models.PaymentInitiated, true},
		{models.PaymentPending, models.PaymentCompleted, true},
		{models.PaymentInitiated, models.PaymentCompleted, true},
		{models.PaymentInitiated, models.PaymentFailed, true},
		{models.PaymentProcessing, models.PaymentCompleted, true},
		// late gateway confirmation after a recorded failure
		{models.PaymentFailed, models.PaymentCompleted, true},
		// refund is the only exit from completed
		{models.PaymentCompleted, models.PaymentRefunded, true},
		{models.PaymentCompleted, models.PaymentFailed, false},
		{models.PaymentCompleted, models.PaymentPending, false},
		{models.PaymentCompleted, models.PaymentInitiated, false},
		// refunded and cancelled are terminal
		{models.PaymentRefunded, models.PaymentCompleted, false},
		{models.PaymentCancelled, models.PaymentCompleted, false},
		{models.PaymentFailed, models.PaymentInitiated, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCompletePaymentReconcilesOrder(t *testing.T) {
	db := setupTestDB(t)
	_, order := createTestOrder(t, db, "50000")

	payment := models.Payment{
		OrderID:    order.ID,
		Identifier: "TGM-x",
		Status:     models.PaymentInitiated,
		Amount:     decimal.RequireFromString("50000"),
	}
	require.NoError(t, db.Create(&payment).Error)

	err := CompletePayment(db, &payment, CompletionSignal{
		TxReference:         "T1",
		PaymentReference:    "FL-9",
		PaymentMethodDetail: "FLOOZ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	require.NotNil(t, payment.PaidAt)

	var reloadedOrder models.Order
	require.NoError(t, db.First(&reloadedOrder, order.ID).Error)
	assert.Equal(t, models.PaymentStatusPaid, reloadedOrder.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, reloadedOrder.Status)

	var reloadedPayment models.Payment
	require.NoError(t, db.First(&reloadedPayment, payment.ID).Error)
	assert.Equal(t, "T1", reloadedPayment.TxReference)
	assert.Equal(t, "FL-9", reloadedPayment.PaymentReference)
}

func TestCompletePaymentIsMonotonic(t *testing.T) {
	db := setupTestDB(t)
	_, order := createTestOrder(t, db, "50000")

	payment := models.Payment{
		OrderID:    order.ID,
		Identifier: "TGM-y",
		Status:     models.PaymentInitiated,
		Amount:     order.Total,
	}
	require.NoError(t, db.Create(&payment).Error)

	require.NoError(t, CompletePayment(db, &payment, CompletionSignal{TxReference: "T1"}))
	firstPaidAt := *payment.PaidAt

	// A second success signal is a no-op, not an error.
	require.NoError(t, CompletePayment(db, &payment, CompletionSignal{TxReference: "T2"}))

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, "T1", reloaded.TxReference, "winner's fields must not be overwritten")
	assert.True(t, firstPaidAt.Equal(*reloaded.PaidAt))
}

func TestCompletePaymentRejectedFromRefunded(t *testing.T) {
	db := setupTestDB(t)
	_, order := createTestOrder(t, db, "50000")

	payment := models.Payment{
		OrderID:    order.ID,
		Identifier: "TGM-z",
		Status:     models.PaymentRefunded,
		Amount:     order.Total,
	}
	require.NoError(t, db.Create(&payment).Error)

	err := CompletePayment(db, &payment, CompletionSignal{TxReference: "T1"})
	require.Error(t, err)
	appErr := utils.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, utils.ErrCodeInvalidTransition, appErr.ErrCode)
}

func TestRefundPayment(t *testing.T) {
	db := setupTestDB(t)
	_, order := createTestOrder(t, db, "50000")

	payment := models.Payment{
		OrderID:    order.ID,
		Identifier: "TGM-r",
		Status:     models.PaymentCompleted,
		Amount:     order.Total,
	}
	require.NoError(t, db.Create(&payment).Error)

	require.NoError(t, RefundPayment(db, &payment))
	assert.Equal(t, models.PaymentRefunded, payment.Status)

	var reloadedOrder models.Order
	require.NoError(t, db.First(&reloadedOrder, order.ID).Error)
	assert.Equal(t, models.PaymentStatusRefunded, reloadedOrder.PaymentStatus)
	assert.Equal(t, models.OrderStatusRefunded, reloadedOrder.Status)

	// Refunding twice is rejected.
	err := RefundPayment(db, &payment)
	require.Error(t, err)
}

func TestRefundRequiresCompleted(t *testing.T) {
	db := setupTestDB(t)
	_, order := createTestOrder(t, db, "50000")

	payment := models.Payment{
		OrderID:    order.ID,
		Identifier: "TGM-p",
		Status:     models.PaymentInitiated,
		Amount:     order.Total,
	}
	require.NoError(t, db.Create(&payment).Error)

	err := RefundPayment(db, &payment)
	require.Error(t, err)
	appErr := utils.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, utils.ErrCodeInvalidTransition, appErr.ErrCode)
}
