package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mawulik/togomart/config"
	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
		&models.ShippingMethod{},
		&models.Payment{},
	))
	require.NoError(t, config.EnsureLivePaymentIndex(db))

	service := services.NewPaymentService(db, services.NewPayGateClient(config.PayGateConfig{}))
	controller := NewPaymentController(service)

	router := gin.New()
	router.POST("/v1/payments/webhook/", controller.Webhook)
	return router, db
}

func seedInitiatedPayment(t *testing.T, db *gorm.DB) models.Payment {
	t.Helper()

	user := models.User{Email: fmt.Sprintf("%s@example.com", t.Name()), Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	order := models.Order{
		UserID:        user.ID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Subtotal:      decimal.RequireFromString("50000"),
		Total:         decimal.RequireFromString("50000"),
	}
	require.NoError(t, db.Create(&order).Error)

	payment := models.Payment{
		OrderID:     order.ID,
		Identifier:  "TGM-webhook-test",
		TxReference: "T1",
		Status:      models.PaymentInitiated,
		Amount:      order.Total,
		Currency:    "XOF",
	}
	require.NoError(t, db.Create(&payment).Error)
	return payment
}

func postWebhook(t *testing.T, router *gin.Engine, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookEndpointCompletesPayment(t *testing.T) {
	router, db := setupWebhookRouter(t)
	payment := seedInitiatedPayment(t, db)

	w := postWebhook(t, router, map[string]interface{}{
		"tx_reference":   "T1",
		"identifier":     payment.Identifier,
		"amount":         50000,
		"payment_method": "FLOOZ",
		"phone_number":   "+22890123456",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentCompleted, reloaded.Status)

	var order models.Order
	require.NoError(t, db.First(&order, payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
}

func TestWebhookEndpointMissingFieldMutatesNothing(t *testing.T) {
	router, db := setupWebhookRouter(t)
	payment := seedInitiatedPayment(t, db)

	// phone_number absent: the whole callback fails with field detail.
	w := postWebhook(t, router, map[string]interface{}{
		"tx_reference":   "T1",
		"identifier":     payment.Identifier,
		"amount":         50000,
		"payment_method": "FLOOZ",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "phone_number",
		"field errors must carry the wire name")

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentInitiated, reloaded.Status, "payment must not be mutated")

	var order models.Order
	require.NoError(t, db.First(&order, payment.OrderID).Error)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus, "order must not be mutated")
}

func TestWebhookEndpointDuplicateDelivery(t *testing.T) {
	router, db := setupWebhookRouter(t)
	payment := seedInitiatedPayment(t, db)

	payload := map[string]interface{}{
		"tx_reference":   "T1",
		"identifier":     payment.Identifier,
		"amount":         50000,
		"payment_method": "FLOOZ",
		"phone_number":   "+22890123456",
	}

	first := postWebhook(t, router, payload)
	assert.Equal(t, http.StatusOK, first.Code)
	second := postWebhook(t, router, payload)
	assert.Equal(t, http.StatusOK, second.Code, "retransmission is absorbed, not an error")

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, payment.ID).Error)
	assert.Equal(t, models.PaymentCompleted, reloaded.Status)
}

func TestWebhookEndpointUnknownIdentifier(t *testing.T) {
	router, _ := setupWebhookRouter(t)

	w := postWebhook(t, router, map[string]interface{}{
		"tx_reference":   "T1",
		"identifier":     "TGM-unknown",
		"amount":         1000,
		"payment_method": "FLOOZ",
		"phone_number":   "+22890123456",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "payment_not_found")
}
