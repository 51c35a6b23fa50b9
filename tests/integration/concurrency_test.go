package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doRaw fires a request without test assertions so it is safe inside
// goroutines; failures surface as status codes collected by the caller.
func (a *testApp) doRaw(method, path, token string, body interface{}) (int, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequest(method, a.server.URL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func TestConcurrency_ReservesNeverOverdraw(t *testing.T) {
	app := newTestApp(t)
	userID := uuid.New()
	token := app.token(t, userID, "player")

	gameID := uuid.New()
	app.catalogRepo.addGame(domain.Game{ID: gameID, HomeTeam: "A", AwayTeam: "B", League: "L", KickoffAt: time.Now().Add(time.Hour), Status: "upcoming"})

	// 100.00 funds exactly 10 stakes of 10.00
	app.deposit(t, userID, token, 100000)

	const workers = 20
	var placed, rejected, unexpected int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			status, err := app.doRaw(http.MethodPost, "/api/v1/bets", token, map[string]interface{}{
				"stake": 10000,
				"legs": []map[string]interface{}{
					{"game_id": gameID.String(), "odds": 2.0, "label": "A to win"},
				},
			})
			switch {
			case err == nil && status == http.StatusCreated:
				atomic.AddInt64(&placed, 1)
			case err == nil && status == http.StatusPaymentRequired:
				atomic.AddInt64(&rejected, 1)
			default:
				atomic.AddInt64(&unexpected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), placed)
	assert.Equal(t, int64(10), rejected)
	assert.Zero(t, unexpected)

	// Wallet drained exactly, never negative
	wallet, err := app.ledgerRepo.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.Equal(t, int64(0), wallet.Balance)

	sum, err := app.ledgerRepo.SumEntries(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum)
}

func TestConcurrency_SettleCreditsExactlyOnce(t *testing.T) {
	app := newTestApp(t)
	userID := uuid.New()
	token := app.token(t, userID, "player")
	adminToken := app.token(t, uuid.New(), "admin")

	gameID := uuid.New()
	app.catalogRepo.addGame(domain.Game{ID: gameID, HomeTeam: "A", AwayTeam: "B", League: "L", KickoffAt: time.Now().Add(time.Hour), Status: "upcoming"})
	app.deposit(t, userID, token, 100000)

	resp, body := app.do(t, http.MethodPost, "/api/v1/bets", token, map[string]interface{}{
		"stake": 10000,
		"legs": []map[string]interface{}{
			{"game_id": gameID.String(), "odds": 2.0, "label": "A to win"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	legID := body["data"].(map[string]interface{})["legs"].([]interface{})[0].(map[string]interface{})["id"].(string)

	const workers = 10
	var settled, conflicted, unexpected int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			status, err := app.doRaw(http.MethodPost, "/api/v1/admin/settlements", adminToken, map[string]interface{}{
				"leg_id":  legID,
				"outcome": "won",
			})
			switch {
			case err == nil && status == http.StatusOK:
				atomic.AddInt64(&settled, 1)
			case err == nil && status == http.StatusConflict:
				atomic.AddInt64(&conflicted, 1)
			default:
				atomic.AddInt64(&unexpected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), settled)
	assert.Equal(t, int64(workers-1), conflicted)
	assert.Zero(t, unexpected)

	// 100000 - 10000 stake + 20000 payout, credited once
	wallet, err := app.ledgerRepo.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(110000), wallet.Balance)

	sum, err := app.ledgerRepo.SumEntries(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum)
}

func TestConcurrency_DuplicateConfirmationsCreditOnce(t *testing.T) {
	app := newTestApp(t)
	userID := uuid.New()
	token := app.token(t, userID, "player")

	resp, body := app.do(t, http.MethodPost, "/api/v1/payments/deposits", token, map[string]interface{}{
		"gateway": "mpesa",
		"amount":  75000,
		"phone":   "254712345678",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ref := body["data"].(map[string]interface{})["gateway_ref"].(string)

	const workers = 10
	var accepted int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			resp := app.mpesaConfirmRaw(ref, 75000, 0)
			if resp == http.StatusOK {
				atomic.AddInt64(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	// Every delivery is acknowledged, the credit lands once
	assert.Equal(t, int64(workers), accepted)

	wallet, err := app.ledgerRepo.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), wallet.Balance)

	sum, err := app.ledgerRepo.SumEntries(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum)
}

// mpesaConfirmRaw is the assertion-free variant of mpesaConfirm for use
// inside goroutines.
func (a *testApp) mpesaConfirmRaw(ref string, amount int64, resultCode int) int {
	cb := map[string]interface{}{
		"Body": map[string]interface{}{
			"stkCallback": map[string]interface{}{
				"CheckoutRequestID": ref,
				"ResultCode":        resultCode,
				"ResultDesc":        "ok",
				"CallbackMetadata": map[string]interface{}{
					"Item": []map[string]interface{}{
						{"Name": "Amount", "Value": float64(amount) / 100},
					},
				},
			},
		},
	}
	raw, err := json.Marshal(cb)
	if err != nil {
		return 0
	}

	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/v1/payments/mpesa/callback", bytes.NewReader(raw))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", a.mpesaSigner.Sign(raw))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()
	return resp.StatusCode
}
