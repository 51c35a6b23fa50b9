package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// PaypalConfig holds the PayPal REST API credentials.
type PaypalConfig struct {
	BaseURL  string
	ClientID string
	Secret   string
	Currency string
}

// PaypalClient implements ports.GatewayClient for the PayPal REST API.
// Deposits create checkout orders, payouts use the Payouts API.
type PaypalClient struct {
	cfg        PaypalConfig
	httpClient HTTPClient
	log        zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPaypalClient creates a new PayPal client.
func NewPaypalClient(cfg PaypalConfig, httpClient HTTPClient, log zerolog.Logger) *PaypalClient {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &PaypalClient{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log,
	}
}

// Name returns the gateway identifier.
func (c *PaypalClient) Name() domain.Gateway {
	return domain.GatewayPaypal
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *PaypalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token call: status %d: %s", resp.StatusCode, body)
	}

	var tok paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("paypal token decode: %w", err)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderRequest struct {
	Intent        string `json:"intent"`
	PurchaseUnits []struct {
		ReferenceID string       `json:"reference_id"`
		Amount      paypalAmount `json:"amount"`
	} `json:"purchase_units"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InitiateDeposit creates a checkout order and returns the order id as the
// gateway reference.
func (c *PaypalClient) InitiateDeposit(ctx context.Context, charge ports.GatewayCharge) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	payload := paypalOrderRequest{Intent: "CAPTURE"}
	payload.PurchaseUnits = append(payload.PurchaseUnits, struct {
		ReferenceID string       `json:"reference_id"`
		Amount      paypalAmount `json:"amount"`
	}{
		ReferenceID: charge.Reference,
		Amount: paypalAmount{
			CurrencyCode: c.cfg.Currency,
			Value:        formatCents(charge.Amount),
		},
	})

	var out paypalOrderResponse
	if err := c.post(ctx, token, "/v2/checkout/orders", payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("paypal order create: empty order id")
	}

	c.log.Info().
		Str("order_id", out.ID).
		Str("reference", charge.Reference).
		Msg("PayPal order created")

	return out.ID, nil
}

type paypalPayoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
	} `json:"sender_batch_header"`
	Items []struct {
		RecipientType string       `json:"recipient_type"`
		Amount        paypalAmount `json:"amount"`
		Receiver      string       `json:"receiver"`
		SenderItemID  string       `json:"sender_item_id"`
	} `json:"items"`
}

type paypalPayoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
	} `json:"batch_header"`
}

// InitiatePayout submits a payouts batch with a single item and returns
// the batch id as the gateway reference.
func (c *PaypalClient) InitiatePayout(ctx context.Context, charge ports.GatewayCharge) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	payload := paypalPayoutRequest{}
	payload.SenderBatchHeader.SenderBatchID = charge.Reference
	payload.Items = append(payload.Items, struct {
		RecipientType string       `json:"recipient_type"`
		Amount        paypalAmount `json:"amount"`
		Receiver      string       `json:"receiver"`
		SenderItemID  string       `json:"sender_item_id"`
	}{
		RecipientType: "PHONE",
		Amount: paypalAmount{
			CurrencyCode: c.cfg.Currency,
			Value:        formatCents(charge.Amount),
		},
		Receiver:     charge.Phone,
		SenderItemID: charge.Reference,
	})

	var out paypalPayoutResponse
	if err := c.post(ctx, token, "/v1/payments/payouts", payload, &out); err != nil {
		return "", err
	}
	if out.BatchHeader.PayoutBatchID == "" {
		return "", fmt.Errorf("paypal payout create: empty batch id")
	}

	c.log.Info().
		Str("payout_batch_id", out.BatchHeader.PayoutBatchID).
		Str("reference", charge.Reference).
		Msg("PayPal payout submitted")

	return out.BatchHeader.PayoutBatchID, nil
}

func (c *PaypalClient) post(ctx context.Context, token, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paypal marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal call %s: status %d: %s", path, resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal decode %s: %w", path, err)
	}
	return nil
}

// formatCents renders an amount in cents as a decimal string, e.g. 1050 -> "10.50".
func formatCents(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
