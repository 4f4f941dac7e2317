package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
	"gorm.io/gorm"
)

// PaymentService orchestrates payment initiation, status polling and
// webhook absorption on top of the gateway client and the database.
type PaymentService struct {
	DB      *gorm.DB
	Gateway *PayGateClient
}

func NewPaymentService(db *gorm.DB, gateway *PayGateClient) *PaymentService {
	return &PaymentService{DB: db, Gateway: gateway}
}

// InitiateRequest is the validated input for a payment initiation.
type InitiateRequest struct {
	OrderID     uint
	PhoneNumber string
	Network     string
	Description string
	UseRedirect bool
	ReturnURL   string
}

// InitiateResult distinguishes the direct and redirect outcomes. A gateway
// failure is reported through GatewayErr with the payment recorded as
// failed; it is not an application error.
type InitiateResult struct {
	Payment     *models.Payment
	Method      string
	TxReference string
	PaymentURL  string
	GatewayErr  *GatewayError
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

// Initiate creates the payment record for an order and dispatches it to the
// gateway. The duplicate-attempt guard runs inside the creation transaction
// and is backed by the one-live-payment-per-order unique index, so two
// concurrent initiations cannot both create a live payment. The payment row
// is committed before the gateway is called, so the audit trail survives a
// crash mid-call.
func (s *PaymentService) Initiate(user models.User, req InitiateRequest) (*InitiateResult, error) {
	var order models.Order
	if err := s.DB.Where("id = ? AND user_id = ?", req.OrderID, user.ID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError(utils.ErrCodeOrderNotFound, "Commande non trouvée")
		}
		return nil, err
	}

	if verrs := validateInitiateRequest(&req); len(verrs) > 0 {
		return nil, verrs
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		Identifier:  "TGM-" + uuid.New().String(),
		Status:      models.PaymentPending,
		Amount:      order.Total,
		Currency:    "XOF",
		PhoneNumber: req.PhoneNumber,
		Network:     req.Network,
		Description: req.Description,
	}
	if payment.Description == "" {
		payment.Description = fmt.Sprintf("Paiement commande %s", order.OrderNumber)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Re-read inside the transaction so the paid check and the create
		// see the same state.
		var current models.Order
		if err := tx.First(&current, order.ID).Error; err != nil {
			return err
		}
		if current.PaymentStatus == models.PaymentStatusPaid {
			return utils.ConflictError(utils.ErrCodeOrderAlreadyPaid, "Cette commande a déjà été payée")
		}

		var existing models.Payment
		err := tx.Where("order_id = ? AND status NOT IN ?", order.ID,
			[]string{models.PaymentFailed, models.PaymentCancelled}).First(&existing).Error
		if err == nil {
			if existing.Status == models.PaymentCompleted {
				return utils.ConflictError(utils.ErrCodePaymentCompleted, "Un paiement réussi existe déjà pour cette commande")
			}
			return utils.ConflictError(utils.ErrCodePaymentInProgress, "Un paiement est déjà en cours pour cette commande")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(payment).Error; err != nil {
			// The partial unique index caught a concurrent initiation that
			// the check above could not see.
			if isUniqueViolation(err) {
				return utils.ConflictError(utils.ErrCodePaymentInProgress, "Un paiement est déjà en cours pour cette commande")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.UseRedirect {
		return s.dispatchRedirect(payment, req.ReturnURL)
	}
	return s.dispatchDirect(payment)
}

func validateInitiateRequest(req *InitiateRequest) utils.FieldValidationErrors {
	var verrs utils.FieldValidationErrors

	normalized, ok := utils.NormalizePhoneNumber(req.PhoneNumber)
	if !ok {
		verrs = append(verrs, utils.FieldValidationError{
			Field:   "phone_number",
			Message: "Format de numéro invalide. Exemples: +22890123456, 0022890123456, 090123456",
		})
	} else {
		req.PhoneNumber = normalized
	}

	if !utils.ValidNetwork(req.Network) {
		verrs = append(verrs, utils.FieldValidationError{
			Field:   "network",
			Message: "Réseau doit être FLOOZ ou TMONEY",
		})
	}

	if req.UseRedirect && req.ReturnURL == "" {
		verrs = append(verrs, utils.FieldValidationError{
			Field:   "return_url",
			Message: "Ce champ est requis lorsque use_redirect est vrai",
		})
	}

	return verrs
}

func (s *PaymentService) dispatchDirect(payment *models.Payment) (*InitiateResult, error) {
	result := s.Gateway.InitiateDirect(payment)

	// Raw snapshots are audit data; they are stored whatever the row's
	// status is by now.
	if err := s.DB.Model(payment).Updates(map[string]interface{}{
		"raw_request":  result.RawRequest,
		"raw_response": result.RawResponse,
	}).Error; err != nil {
		// The gateway outcome must not be lost even if this write fails;
		// the raw payloads go to the error log for manual replay.
		utils.LogError("Failed to persist gateway result for %s: %v (request=%v response=%v)",
			payment.Identifier, err, result.RawRequest, result.RawResponse)
		return nil, utils.WrapError(err, "failed to persist gateway result")
	}

	statusUpdates := map[string]interface{}{}
	if result.Success {
		statusUpdates["status"] = models.PaymentInitiated
		statusUpdates["tx_reference"] = result.TxReference
	} else {
		statusUpdates["status"] = models.PaymentFailed
		statusUpdates["error_message"] = result.Err.Message
	}

	// A webhook may have completed the payment while the direct call was in
	// flight, so the status write only applies to a row still pending; the
	// payment never moves backward out of completed.
	res := s.DB.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Updates(statusUpdates)
	if res.Error != nil {
		utils.LogError("Failed to persist gateway result for %s: %v (request=%v response=%v)",
			payment.Identifier, res.Error, result.RawRequest, result.RawResponse)
		return nil, utils.WrapError(res.Error, "failed to persist gateway result")
	}

	gwErr := result.Err
	if res.RowsAffected == 0 {
		if err := s.DB.First(payment, payment.ID).Error; err != nil {
			return nil, utils.WrapError(err, "failed to reload payment")
		}
		if payment.Status == models.PaymentCompleted {
			utils.LogInfo("Payment %s completed by webhook during direct call", payment.Identifier)
			gwErr = nil
		}
	} else if result.Success {
		payment.Status = models.PaymentInitiated
		payment.TxReference = result.TxReference
	} else {
		payment.Status = models.PaymentFailed
		payment.ErrorMessage = result.Err.Message
	}
	payment.RawRequest = result.RawRequest
	payment.RawResponse = result.RawResponse

	return &InitiateResult{
		Payment:     payment,
		Method:      "direct",
		TxReference: result.TxReference,
		GatewayErr:  gwErr,
	}, nil
}

func (s *PaymentService) dispatchRedirect(payment *models.Payment, returnURL string) (*InitiateResult, error) {
	paymentURL, rawRequest := s.Gateway.BuildRedirectURL(payment, returnURL)

	if err := s.DB.Model(payment).Updates(map[string]interface{}{
		"raw_request": rawRequest,
	}).Error; err != nil {
		return nil, utils.WrapError(err, "failed to persist redirect initiation")
	}

	// Same guard as the direct path: an early webhook wins and the status
	// write becomes a no-op.
	res := s.DB.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
		Update("status", models.PaymentInitiated)
	if res.Error != nil {
		return nil, utils.WrapError(res.Error, "failed to persist redirect initiation")
	}
	if res.RowsAffected == 0 {
		if err := s.DB.First(payment, payment.ID).Error; err != nil {
			return nil, utils.WrapError(err, "failed to reload payment")
		}
	} else {
		payment.Status = models.PaymentInitiated
	}
	payment.RawRequest = rawRequest

	return &InitiateResult{
		Payment:    payment,
		Method:     "redirect",
		PaymentURL: paymentURL,
	}, nil
}

// PollStatus asks the gateway for the payment's state and, on a success
// report, routes the confirmation through the same transition as the
// webhook path. The second of a racing webhook/poll pair observes the
// already completed state and mutates nothing.
func (s *PaymentService) PollStatus(payment *models.Payment) (*StatusResult, error) {
	status, gwErr := s.Gateway.CheckStatus(payment.Identifier, payment.TxReference)
	if gwErr != nil {
		return nil, utils.NewAppError(400, utils.ErrCodeGatewayFailure, gwErr.Message, gwErr)
	}

	switch {
	case status.Status == PayGateStatusSuccess && payment.Status != models.PaymentCompleted:
		signal := CompletionSignal{
			TxReference:         status.TxReference,
			PaymentReference:    status.PaymentReference,
			PaymentMethodDetail: status.PaymentMethod,
			Raw:                 status.Raw,
		}
		if err := CompletePayment(s.DB, payment, signal); err != nil {
			return nil, err
		}
	case status.Status == PayGateStatusInProgress && CanTransition(payment.Status, models.PaymentProcessing):
		res := s.DB.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", payment.ID,
				[]string{models.PaymentPending, models.PaymentInitiated}).
			Update("status", models.PaymentProcessing)
		if res.Error != nil {
			return nil, utils.WrapError(res.Error, "failed to record processing state")
		}
		if res.RowsAffected > 0 {
			payment.Status = models.PaymentProcessing
		}
	}

	return status, nil
}

// FindUserPayment loads a payment owned by the given user.
func (s *PaymentService) FindUserPayment(userID, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.DB.Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payments.id = ? AND orders.user_id = ?", paymentID, userID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError(utils.ErrCodePaymentNotFound, "Paiement non trouvé")
		}
		return nil, err
	}
	return &payment, nil
}

// ListUserPayments returns the caller's payments, newest first.
func (s *PaymentService) ListUserPayments(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.DB.Joins("JOIN orders ON orders.id = payments.order_id").
		Where("orders.user_id = ?", userID).
		Order("payments.created_at DESC").
		Find(&payments).Error
	return payments, err
}

// CheckStatusByRef polls the gateway by identifier or tx_reference. When
// the identifier resolves to one of the caller's payments the result is
// reconciled through the shared transition; an identifier the caller does
// not own is reported as not found.
func (s *PaymentService) CheckStatusByRef(userID uint, identifier, txReference string) (*StatusResult, error) {
	if identifier != "" {
		var payment models.Payment
		err := s.DB.Joins("JOIN orders ON orders.id = payments.order_id").
			Where("payments.identifier = ? AND orders.user_id = ?", identifier, userID).
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.NotFoundError(utils.ErrCodePaymentNotFound, "Paiement non trouvé")
			}
			return nil, err
		}
		return s.PollStatus(&payment)
	}

	status, gwErr := s.Gateway.CheckStatus(identifier, txReference)
	if gwErr != nil {
		return nil, utils.NewAppError(400, utils.ErrCodeGatewayFailure, gwErr.Message, gwErr)
	}
	return status, nil
}
