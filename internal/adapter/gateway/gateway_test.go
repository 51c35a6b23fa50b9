package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndVerify(t *testing.T) {
	s := NewSigner("topsecret")
	payload := []byte(`{"gateway_ref":"abc","amount":5000}`)

	sig := s.Sign(payload)
	assert.NotEmpty(t, sig)
	assert.True(t, s.Verify(payload, sig))
	assert.False(t, s.Verify(payload, "deadbeef"))
	assert.False(t, s.Verify([]byte("tampered"), sig))
}

func TestSigner_DifferentSecretsDisagree(t *testing.T) {
	payload := []byte("body")
	sigA := NewSigner("a").Sign(payload)
	assert.False(t, NewSigner("b").Verify(payload, sigA))
}

func newMpesaTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)
		tokenCalls++
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body stkPushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(100), body.Amount) // 10000 cents -> 100 shillings
		assert.Equal(t, "254700000001", body.PhoneNumber)
		json.NewEncoder(w).Encode(stkPushResponse{
			CheckoutRequestID: "ws_CO_123",
			ResponseCode:      "0",
		})
	})
	mux.HandleFunc("/mpesa/b2c/v1/paymentrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(b2cResponse{ConversationID: "AG_456", ResponseCode: "0"})
	})
	return httptest.NewServer(mux), &tokenCalls
}

func TestMpesaClient_InitiateDeposit(t *testing.T) {
	srv, tokenCalls := newMpesaTestServer(t)
	defer srv.Close()

	client := NewMpesaClient(MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/payments/mpesa/callback",
	}, srv.Client(), zerolog.Nop())

	ref, err := client.InitiateDeposit(context.Background(), ports.GatewayCharge{
		UserID:    uuid.New(),
		Amount:    10000,
		Phone:     "254700000001",
		Reference: "pay-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_123", ref)
	assert.Equal(t, domain.GatewayMpesa, client.Name())

	// Second call reuses the cached token.
	_, err = client.InitiatePayout(context.Background(), ports.GatewayCharge{
		Amount: 5000, Phone: "254700000001", Reference: "pay-2",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *tokenCalls)
}

func TestMpesaClient_RejectedPush(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(stkPushResponse{ResponseCode: "1", ResponseDesc: "insufficient float"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewMpesaClient(MpesaConfig{BaseURL: srv.URL}, srv.Client(), zerolog.Nop())

	_, err := client.InitiateDeposit(context.Background(), ports.GatewayCharge{Amount: 10000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient float")
}

func TestPaypalClient_InitiateDeposit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(paypalTokenResponse{AccessToken: "pp-tok", ExpiresIn: 32400})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer pp-tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		units := body["purchase_units"].([]any)
		amount := units[0].(map[string]any)["amount"].(map[string]any)
		assert.Equal(t, "10.50", amount["value"])
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(paypalOrderResponse{ID: "ORDER-1", Status: "CREATED"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewPaypalClient(PaypalConfig{
		BaseURL:  srv.URL,
		ClientID: "cid",
		Secret:   "csec",
	}, srv.Client(), zerolog.Nop())

	ref, err := client.InitiateDeposit(context.Background(), ports.GatewayCharge{
		Amount:    1050,
		Reference: "pay-3",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", ref)
	assert.Equal(t, domain.GatewayPaypal, client.Name())
}

func TestPaypalClient_InitiatePayout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(paypalTokenResponse{AccessToken: "pp-tok", ExpiresIn: 32400})
	})
	mux.HandleFunc("/v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		var out paypalPayoutResponse
		out.BatchHeader.PayoutBatchID = "BATCH-9"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewPaypalClient(PaypalConfig{BaseURL: srv.URL}, srv.Client(), zerolog.Nop())

	ref, err := client.InitiatePayout(context.Background(), ports.GatewayCharge{
		Amount:    20000,
		Phone:     "254700000002",
		Reference: "wd-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "BATCH-9", ref)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "10.50", formatCents(1050))
	assert.Equal(t, "0.05", formatCents(5))
	assert.Equal(t, "100.00", formatCents(10000))
}
