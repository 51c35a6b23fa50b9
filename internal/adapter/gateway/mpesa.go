package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// MpesaConfig holds the Daraja API credentials.
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// MpesaClient implements ports.GatewayClient for the Safaricom Daraja API.
// Deposits go out as STK push requests, payouts as B2C payment requests.
type MpesaClient struct {
	cfg        MpesaConfig
	httpClient HTTPClient
	log        zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMpesaClient creates a new Daraja client.
func NewMpesaClient(cfg MpesaConfig, httpClient HTTPClient, log zerolog.Logger) *MpesaClient {
	return &MpesaClient{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log,
	}
}

// Name returns the gateway identifier.
func (c *MpesaClient) Name() domain.Gateway {
	return domain.GatewayMpesa
}

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// token returns a cached OAuth token, refreshing it when within a minute
// of expiry.
func (c *MpesaClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("mpesa token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa token call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mpesa token call: status %d: %s", resp.StatusCode, body)
	}

	var tok mpesaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("mpesa token decode: %w", err)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(55 * time.Minute)
	return c.accessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
}

// InitiateDeposit sends an STK push to the user's phone and returns the
// checkout request id as the gateway reference.
func (c *MpesaClient) InitiateDeposit(ctx context.Context, charge ports.GatewayCharge) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            charge.Amount / 100, // Daraja takes whole shillings
		PartyA:            charge.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       charge.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  charge.Reference,
		TransactionDesc:   "Wallet deposit",
	}

	var out stkPushResponse
	if err := c.post(ctx, token, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return "", err
	}
	if out.ResponseCode != "0" {
		return "", fmt.Errorf("mpesa stk push rejected: %s", out.ResponseDesc)
	}

	c.log.Info().
		Str("checkout_request_id", out.CheckoutRequestID).
		Str("reference", charge.Reference).
		Msg("M-Pesa STK push initiated")

	return out.CheckoutRequestID, nil
}

type b2cRequest struct {
	InitiatorName   string `json:"InitiatorName"`
	CommandID       string `json:"CommandID"`
	Amount          int64  `json:"Amount"`
	PartyA          string `json:"PartyA"`
	PartyB          string `json:"PartyB"`
	Remarks         string `json:"Remarks"`
	QueueTimeOutURL string `json:"QueueTimeOutURL"`
	ResultURL       string `json:"ResultURL"`
	Occasion        string `json:"Occasion"`
}

type b2cResponse struct {
	ConversationID string `json:"ConversationID"`
	ResponseCode   string `json:"ResponseCode"`
	ResponseDesc   string `json:"ResponseDescription"`
}

// InitiatePayout sends a B2C payment request and returns the conversation
// id as the gateway reference.
func (c *MpesaClient) InitiatePayout(ctx context.Context, charge ports.GatewayCharge) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	payload := b2cRequest{
		InitiatorName:   c.cfg.ShortCode,
		CommandID:       "BusinessPayment",
		Amount:          charge.Amount / 100,
		PartyA:          c.cfg.ShortCode,
		PartyB:          charge.Phone,
		Remarks:         "Wallet withdrawal",
		QueueTimeOutURL: c.cfg.CallbackURL,
		ResultURL:       c.cfg.CallbackURL,
		Occasion:        charge.Reference,
	}

	var out b2cResponse
	if err := c.post(ctx, token, "/mpesa/b2c/v1/paymentrequest", payload, &out); err != nil {
		return "", err
	}
	if out.ResponseCode != "0" {
		return "", fmt.Errorf("mpesa b2c rejected: %s", out.ResponseDesc)
	}

	c.log.Info().
		Str("conversation_id", out.ConversationID).
		Str("reference", charge.Reference).
		Msg("M-Pesa B2C payout initiated")

	return out.ConversationID, nil
}

func (c *MpesaClient) post(ctx context.Context, token, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mpesa marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mpesa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mpesa call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mpesa call %s: status %d: %s", path, resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mpesa decode %s: %w", path, err)
	}
	return nil
}
