package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/services"
	"github.com/mawulik/togomart/utils"
)

// Binding failures must name fields by their wire name (phone_number), not
// the Go identifier, so clients can match errors to their payload keys.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// PaymentController exposes the payment lifecycle over HTTP.
type PaymentController struct {
	Service *services.PaymentService
}

func NewPaymentController(service *services.PaymentService) *PaymentController {
	return &PaymentController{Service: service}
}

// respondServiceError maps service errors onto the response envelope:
// validation errors and domain conflicts stay 4xx with their detail, only
// unexpected errors become a 500.
func respondServiceError(c *gin.Context, err error) {
	var verrs utils.FieldValidationErrors
	if errors.As(err, &verrs) {
		utils.BadRequest(c, "Validation échouée", verrs)
		return
	}
	if appErr := utils.GetAppError(err); appErr != nil {
		utils.ErrorWithCode(c, appErr.Code, appErr.ErrCode, appErr.Message, nil)
		return
	}
	utils.LogError("Unexpected error: %v", err)
	utils.InternalServerError(c, "Erreur interne", nil)
}

// bindingFieldErrors turns gin binding failures into field-level errors so
// a malformed payload is rejected with the offending fields named.
func bindingFieldErrors(err error) interface{} {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(utils.FieldValidationErrors, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, utils.FieldValidationError{
				Field:   fe.Field(),
				Message: "Champ requis manquant ou invalide",
			})
		}
		return fields
	}
	return err.Error()
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		utils.Unauthorized(c, "User not found")
		return models.User{}, false
	}
	return userVal.(models.User), true
}

type initiatePaymentRequest struct {
	OrderID     uint   `json:"order_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Network     string `json:"network" binding:"required"`
	Description string `json:"description"`
	UseRedirect bool   `json:"use_redirect"`
	ReturnURL   string `json:"return_url"`
}

// InitiateMobilePayment handles POST /v1/payments/mobile-payment/initiate/
func (pc *PaymentController) InitiateMobilePayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Requête invalide", bindingFieldErrors(err))
		return
	}

	utils.LogInfo("Payment initiation requested for order %d by user %d", req.OrderID, user.ID)

	result, err := pc.Service.Initiate(user, services.InitiateRequest{
		OrderID:     req.OrderID,
		PhoneNumber: req.PhoneNumber,
		Network:     req.Network,
		Description: req.Description,
		UseRedirect: req.UseRedirect,
		ReturnURL:   req.ReturnURL,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if result.GatewayErr != nil {
		utils.ErrorWithCode(c, http.StatusBadRequest, utils.ErrCodeGatewayFailure, result.GatewayErr.Message, gin.H{
			"payment_id":  result.Payment.ID,
			"identifier":  result.Payment.Identifier,
			"status_code": result.GatewayErr.Code,
		})
		return
	}

	if result.Method == "redirect" {
		utils.Success(c, "Redirigez vers la page de paiement", gin.H{
			"payment_id":  result.Payment.ID,
			"identifier":  result.Payment.Identifier,
			"payment_url": result.PaymentURL,
			"method":      result.Method,
		})
		return
	}

	utils.Success(c, "Paiement initié avec succès", gin.H{
		"payment_id":   result.Payment.ID,
		"identifier":   result.Payment.Identifier,
		"tx_reference": result.TxReference,
		"method":       result.Method,
	})
}

// PaymentStatus handles GET /v1/payments/:id/status/ - polls the gateway
// and reconciles the local record on a success report.
func (pc *PaymentController) PaymentStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Identifiant de paiement invalide", nil)
		return
	}

	payment, ferr := pc.Service.FindUserPayment(user.ID, uint(paymentID))
	if ferr != nil {
		respondServiceError(c, ferr)
		return
	}

	status, perr := pc.Service.PollStatus(payment)
	if perr != nil {
		respondServiceError(c, perr)
		return
	}

	utils.Success(c, "Statut récupéré", gin.H{
		"local_status":   payment.Status,
		"paygate_status": status.Raw,
	})
}

// Webhook handles POST /v1/payments/webhook/ - the unauthenticated PayGate
// confirmation callback. Retransmissions are absorbed idempotently.
func (pc *PaymentController) Webhook(c *gin.Context) {
	var payload services.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.LogError("Malformed webhook payload: %v", err)
		utils.BadRequest(c, "Champ manquant dans le webhook", bindingFieldErrors(err))
		return
	}

	utils.LogInfo("Webhook received for identifier %s", payload.Identifier)

	payment, err := pc.Service.ProcessWebhook(payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Webhook traité", gin.H{"payment_id": payment.ID})
}

type checkStatusRequest struct {
	Identifier  string `json:"identifier"`
	TxReference string `json:"tx_reference"`
}

// CheckStatus handles POST /v1/payments/check-status/
func (pc *PaymentController) CheckStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req checkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Requête invalide", err.Error())
		return
	}
	if req.Identifier == "" && req.TxReference == "" {
		utils.BadRequest(c, "Au moins un identifiant est requis (identifier ou tx_reference)", nil)
		return
	}

	status, err := pc.Service.CheckStatusByRef(user.ID, req.Identifier, req.TxReference)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Statut récupéré", status.Raw)
}

// Balance handles GET /v1/payments/balance/ (admin only, IP-restricted by
// PayGate itself).
func (pc *PaymentController) Balance(c *gin.Context) {
	balance, gwErr := pc.Service.Gateway.GetBalance()
	if gwErr != nil {
		utils.ErrorWithCode(c, http.StatusBadRequest, utils.ErrCodeGatewayFailure, gwErr.Message, nil)
		return
	}
	utils.Success(c, "Solde récupéré", balance)
}

// ListPayments handles GET /v1/payments/
func (pc *PaymentController) ListPayments(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	payments, err := pc.Service.ListUserPayments(user.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Paiements récupérés", gin.H{"payments": payments})
}

// GetPayment handles GET /v1/payments/:id/
func (pc *PaymentController) GetPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Identifiant de paiement invalide", nil)
		return
	}

	payment, ferr := pc.Service.FindUserPayment(user.ID, uint(paymentID))
	if ferr != nil {
		respondServiceError(c, ferr)
		return
	}

	utils.Success(c, "Paiement récupéré", payment)
}

// RefundPayment handles POST /v1/payments/:id/refund/ - the explicit
// administrative refund, the only transition out of completed.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "Identifiant de paiement invalide", nil)
		return
	}

	var payment models.Payment
	if err := pc.Service.DB.First(&payment, uint(paymentID)).Error; err != nil {
		utils.ErrorWithCode(c, http.StatusNotFound, utils.ErrCodePaymentNotFound, "Paiement non trouvé", nil)
		return
	}

	if err := services.RefundPayment(pc.Service.DB, &payment); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Success(c, "Paiement remboursé", gin.H{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
}
