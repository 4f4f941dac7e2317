package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mawulik/togomart/config"
	"github.com/mawulik/togomart/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayment(amount string) *models.Payment {
	return &models.Payment{
		Identifier:  "TGM-test",
		Amount:      decimal.RequireFromString(amount),
		PhoneNumber: "+22890123456",
		Network:     models.NetworkFlooz,
		Description: "Paiement commande ORD0000000001",
	}
}

func TestInitiateDirectSuccess(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "tx_reference": "TX-42"})
	}))
	defer srv.Close()

	client := NewPayGateClient(config.PayGateConfig{
		AuthToken: "secret",
		APIURL:    srv.URL,
		Timeout:   5 * time.Second,
	})

	result := client.InitiateDirect(testPayment("50000.75"))
	require.Nil(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "TX-42", result.TxReference)

	// Amount is truncated to whole XOF.
	assert.Equal(t, "50000", received["amount"])
	assert.Equal(t, "secret", received["auth_token"])
	assert.Equal(t, "TGM-test", received["identifier"])
	assert.Equal(t, "FLOOZ", received["network"])

	// Raw snapshots are returned for audit storage.
	assert.Equal(t, "50000", result.RawRequest["amount"])
	assert.Equal(t, float64(0), result.RawResponse["status"])
}

func TestInitiateDirectGatewayStatusCodes(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{2, "Jeton d'authentification invalide"},
		{4, "Paramètres invalides"},
		{6, "Doublon détecté"},
		{99, "Erreur PayGate: 99"},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": tt.status})
		}))
		client := NewPayGateClient(config.PayGateConfig{APIURL: srv.URL, Timeout: 5 * time.Second})

		result := client.InitiateDirect(testPayment("1000"))
		require.NotNil(t, result.Err, "status %d", tt.status)
		assert.False(t, result.Success)
		assert.Equal(t, GatewayErrorStatus, result.Err.Kind)
		assert.Equal(t, tt.status, result.Err.Code)
		assert.Equal(t, tt.message, result.Err.Message)
		assert.NotNil(t, result.RawResponse, "raw response kept on failure")
		srv.Close()
	}
}

func TestInitiateDirectHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer srv.Close()

	client := NewPayGateClient(config.PayGateConfig{APIURL: srv.URL, Timeout: 5 * time.Second})
	result := client.InitiateDirect(testPayment("1000"))
	require.NotNil(t, result.Err)
	assert.Equal(t, GatewayErrorHTTP, result.Err.Kind)
	assert.Equal(t, http.StatusBadGateway, result.Err.Code)
}

func TestInitiateDirectNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewPayGateClient(config.PayGateConfig{APIURL: srv.URL, Timeout: time.Second})
	result := client.InitiateDirect(testPayment("1000"))
	require.NotNil(t, result.Err)
	assert.Equal(t, GatewayErrorNetwork, result.Err.Kind)
	assert.NotNil(t, result.RawRequest, "raw request kept even without a response")
}

func TestBuildRedirectURL(t *testing.T) {
	client := NewPayGateClient(config.PayGateConfig{
		AuthToken: "secret",
		PageURL:   "https://paygateglobal.com/v1/page",
	})

	redirectURL, rawRequest := client.BuildRedirectURL(testPayment("2500.90"), "https://shop.example.com/return")

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "secret", query.Get("token"))
	assert.Equal(t, "2500", query.Get("amount"))
	assert.Equal(t, "TGM-test", query.Get("identifier"))
	assert.Equal(t, "https://shop.example.com/return", query.Get("url"))
	assert.Equal(t, "+22890123456", query.Get("phone"))
	assert.Equal(t, "FLOOZ", query.Get("network"))
	assert.Equal(t, "2500", rawRequest["amount"])

	// Optional parameters are omitted when empty.
	bare := testPayment("2500")
	bare.PhoneNumber = ""
	bare.Network = ""
	bareURL, _ := client.BuildRedirectURL(bare, "")
	parsed, err = url.Parse(bareURL)
	require.NoError(t, err)
	assert.False(t, parsed.Query().Has("url"))
	assert.False(t, parsed.Query().Has("phone"))
	assert.False(t, parsed.Query().Has("network"))
}

func TestCheckStatusRequiresReference(t *testing.T) {
	client := NewPayGateClient(config.PayGateConfig{Timeout: time.Second})
	_, gwErr := client.CheckStatus("", "")
	require.NotNil(t, gwErr)
	assert.Contains(t, gwErr.Message, "requis")
}

func TestCheckStatusPrefersTxReference(t *testing.T) {
	var path string
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "tx_reference": "TX-1", "payment_method": "FLOOZ"})
	}))
	defer srv.Close()

	client := NewPayGateClient(config.PayGateConfig{
		AuthToken:   "secret",
		StatusURL:   srv.URL + "/v1/status",
		StatusV2URL: srv.URL + "/v2/status",
		Timeout:     5 * time.Second,
	})

	status, gwErr := client.CheckStatus("TGM-test", "TX-1")
	require.Nil(t, gwErr)
	assert.Equal(t, "/v1/status", path, "tx_reference goes to the v1 endpoint")
	assert.Equal(t, "TX-1", received["tx_reference"])
	assert.Equal(t, 0, status.Status)
	assert.Equal(t, "FLOOZ", status.PaymentMethod)
	assert.NotNil(t, status.Raw)

	_, gwErr = client.CheckStatus("TGM-test", "")
	require.Nil(t, gwErr)
	assert.Equal(t, "/v2/status", path, "identifier goes to the v2 endpoint")
	assert.Equal(t, "TGM-test", received["identifier"])
}

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"flooz": 150000, "tmoney": 98000})
	}))
	defer srv.Close()

	client := NewPayGateClient(config.PayGateConfig{BalanceURL: srv.URL, Timeout: 5 * time.Second})
	balance, gwErr := client.GetBalance()
	require.Nil(t, gwErr)
	assert.Equal(t, float64(150000), balance["flooz"])
}
