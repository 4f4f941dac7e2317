package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mawulik/togomart/config"
	"github.com/mawulik/togomart/models"
	"github.com/mawulik/togomart/utils"
)

// PayGate Global status codes returned by the pay endpoint.
const (
	PayGateStatusSuccess       = 0
	PayGateStatusBadToken      = 2
	PayGateStatusBadParameters = 4
	PayGateStatusDuplicate     = 6
)

// On the status endpoints the code namespace differs: 0 still means paid,
// but 2 means the transaction is in progress on the operator side.
const PayGateStatusInProgress = 2

// GatewayErrorKind distinguishes the three failure classes of a gateway
// call: the connection itself, the HTTP exchange, or a non-zero status code
// inside a well-formed response.
type GatewayErrorKind string

const (
	GatewayErrorNetwork GatewayErrorKind = "network"
	GatewayErrorHTTP    GatewayErrorKind = "http"
	GatewayErrorStatus  GatewayErrorKind = "status"
)

// GatewayError is an expected gateway failure. It is recorded on the
// payment row and surfaced to the caller, never raised as a panic.
type GatewayError struct {
	Kind    GatewayErrorKind
	Code    int // gateway status code, or HTTP status for Kind http
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Operator-facing messages for PayGate's documented error codes.
var payGateErrorMessages = map[int]string{
	PayGateStatusBadToken:      "Jeton d'authentification invalide",
	PayGateStatusBadParameters: "Paramètres invalides",
	PayGateStatusDuplicate:     "Doublon détecté",
}

func payGateErrorMessage(code int) string {
	if msg, ok := payGateErrorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Erreur PayGate: %d", code)
}

// PayGateClient is a stateless wrapper around the PayGate Global API
// (FLOOZ / T-Money). It is constructed once at startup from the explicit
// gateway configuration and holds no other state.
type PayGateClient struct {
	cfg        config.PayGateConfig
	httpClient *http.Client
}

// NewPayGateClient builds a client with the configured request timeout.
func NewPayGateClient(cfg config.PayGateConfig) *PayGateClient {
	return &PayGateClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// InitiationResult carries the outcome of a direct initiation attempt. The
// raw request and response are always populated so they can be stored on
// the payment row regardless of outcome.
type InitiationResult struct {
	Success     bool
	TxReference string
	RawRequest  models.JSONMap
	RawResponse models.JSONMap
	Err         *GatewayError
}

// StatusResult is the payload of a PayGate status lookup.
type StatusResult struct {
	Status           int    `json:"status"`
	TxReference      string `json:"tx_reference"`
	PaymentReference string `json:"payment_reference"`
	PaymentMethod    string `json:"payment_method"`
	Datetime         string `json:"datetime"`
	Raw              models.JSONMap
}

func (c *PayGateClient) post(endpoint string, body map[string]interface{}) (*http.Response, []byte, *GatewayError) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, &GatewayError{Kind: GatewayErrorNetwork, Message: "Requête PayGate invalide", Err: err}
	}

	resp, err := c.httpClient.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		utils.LogError("PayGate connection error on %s: %v", endpoint, err)
		return nil, nil, &GatewayError{Kind: GatewayErrorNetwork, Message: "Erreur de connexion au service de paiement", Err: err}
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, nil, &GatewayError{Kind: GatewayErrorNetwork, Message: "Réponse PayGate illisible", Err: err}
	}
	return resp, buf.Bytes(), nil
}

// InitiateDirect sends the payment to PayGate over the direct API. The
// amount is truncated to whole XOF, as the gateway only accepts integers.
func (c *PayGateClient) InitiateDirect(payment *models.Payment) InitiationResult {
	request := models.JSONMap{
		"auth_token":   c.cfg.AuthToken,
		"phone_number": payment.PhoneNumber,
		"amount":       fmt.Sprintf("%d", payment.Amount.IntPart()),
		"description":  payment.Description,
		"identifier":   payment.Identifier,
		"network":      payment.Network,
	}
	result := InitiationResult{RawRequest: request}

	utils.LogInfo("PayGate direct initiation for identifier %s", payment.Identifier)

	resp, body, gwErr := c.post(c.cfg.APIURL, request)
	if gwErr != nil {
		result.Err = gwErr
		return result
	}

	var response models.JSONMap
	if err := json.Unmarshal(body, &response); err != nil {
		result.Err = &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: "Réponse PayGate illisible",
			Err:     err,
		}
		return result
	}
	result.RawResponse = response

	if resp.StatusCode != http.StatusOK {
		result.Err = &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("Erreur HTTP: %d", resp.StatusCode),
		}
		return result
	}

	statusCode := -1
	if v, ok := response["status"].(float64); ok {
		statusCode = int(v)
	}

	if statusCode != PayGateStatusSuccess {
		result.Err = &GatewayError{
			Kind:    GatewayErrorStatus,
			Code:    statusCode,
			Message: payGateErrorMessage(statusCode),
		}
		return result
	}

	result.Success = true
	result.TxReference, _ = response["tx_reference"].(string)
	return result
}

// BuildRedirectURL composes the hosted payment page URL. No network call is
// made; the caller persists the request snapshot and marks the payment
// initiated.
func (c *PayGateClient) BuildRedirectURL(payment *models.Payment, returnURL string) (string, models.JSONMap) {
	params := url.Values{}
	params.Set("token", c.cfg.AuthToken)
	params.Set("amount", fmt.Sprintf("%d", payment.Amount.IntPart()))
	params.Set("description", payment.Description)
	params.Set("identifier", payment.Identifier)
	if returnURL != "" {
		params.Set("url", returnURL)
	}
	if payment.PhoneNumber != "" {
		params.Set("phone", payment.PhoneNumber)
	}
	if payment.Network != "" {
		params.Set("network", payment.Network)
	}

	request := models.JSONMap{}
	for key := range params {
		request[key] = params.Get(key)
	}

	return c.cfg.PageURL + "?" + params.Encode(), request
}

// CheckStatus queries the gateway for a payment's state. At least one of
// the identifiers must be given; the gateway-issued tx_reference is
// preferred when both are known.
func (c *PayGateClient) CheckStatus(identifier, txReference string) (*StatusResult, *GatewayError) {
	if identifier == "" && txReference == "" {
		return nil, &GatewayError{
			Kind:    GatewayErrorStatus,
			Message: "Identifier ou tx_reference requis",
		}
	}

	var endpoint string
	request := map[string]interface{}{"auth_token": c.cfg.AuthToken}
	if txReference != "" {
		endpoint = c.cfg.StatusURL
		request["tx_reference"] = txReference
	} else {
		endpoint = c.cfg.StatusV2URL
		request["identifier"] = identifier
	}

	resp, body, gwErr := c.post(endpoint, request)
	if gwErr != nil {
		return nil, gwErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("Erreur HTTP: %d", resp.StatusCode),
		}
	}

	var result StatusResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: "Réponse PayGate illisible",
			Err:     err,
		}
	}
	if err := json.Unmarshal(body, &result.Raw); err != nil {
		return nil, &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: "Réponse PayGate illisible",
			Err:     err,
		}
	}
	return &result, nil
}

// GetBalance fetches the FLOOZ and T-Money account balances. PayGate
// restricts this call to whitelisted IPs.
func (c *PayGateClient) GetBalance() (models.JSONMap, *GatewayError) {
	resp, body, gwErr := c.post(c.cfg.BalanceURL, map[string]interface{}{"auth_token": c.cfg.AuthToken})
	if gwErr != nil {
		return nil, gwErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("Erreur HTTP: %d", resp.StatusCode),
		}
	}

	var balance models.JSONMap
	if err := json.Unmarshal(body, &balance); err != nil {
		return nil, &GatewayError{
			Kind:    GatewayErrorHTTP,
			Code:    resp.StatusCode,
			Message: "Réponse PayGate illisible",
			Err:     err,
		}
	}
	return balance, nil
}
