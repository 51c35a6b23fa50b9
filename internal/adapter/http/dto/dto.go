package dto

import "math"

// PlaceBetLeg is one selection within a bet placement request.
type PlaceBetLeg struct {
	GameID         string  `json:"game_id" binding:"required,uuid"`
	MarketID       *string `json:"market_id,omitempty" binding:"omitempty,uuid"`
	MarketOptionID *string `json:"market_option_id,omitempty" binding:"omitempty,uuid"`
	Odds           float64 `json:"odds" binding:"required"`
	Label          string  `json:"label" binding:"required,max=200"`
}

// PlaceBetRequest is the request body for placing a bet group.
type PlaceBetRequest struct {
	Stake int64         `json:"stake" binding:"required,gt=0"`
	Legs  []PlaceBetLeg `json:"legs" binding:"required,min=1,dive"`
}

// BetResponse is one leg of a bet group in API responses.
type BetResponse struct {
	ID             string  `json:"id"`
	GameID         string  `json:"game_id"`
	MarketID       *string `json:"market_id,omitempty"`
	MarketOptionID *string `json:"market_option_id,omitempty"`
	Label          string  `json:"label"`
	Odds           float64 `json:"odds"`
	Status         string  `json:"status"`
	SettledAt      *string `json:"settled_at,omitempty"`
}

// BetGroupResponse is the response body for a bet group.
type BetGroupResponse struct {
	ID                string        `json:"id"`
	Stake             int64         `json:"stake"`
	CombinedOdds      float64       `json:"combined_odds"`
	PotentialWinnings int64         `json:"potential_winnings"`
	Status            string        `json:"status"`
	PlacedAt          string        `json:"placed_at"`
	SettledAt         *string       `json:"settled_at,omitempty"`
	Legs              []BetResponse `json:"legs"`
}

// BetListResponse wraps a paginated bet group list.
type BetListResponse struct {
	Items      []BetGroupResponse `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// WalletBalanceResponse is the response for balance query.
type WalletBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// LedgerEntryResponse is one ledger entry in API responses.
type LedgerEntryResponse struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Amount       int64   `json:"amount"`
	RelatedBetID *string `json:"related_bet_id,omitempty"`
	ExternalRef  *string `json:"external_ref,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// LedgerHistoryResponse wraps cursor-paginated ledger history.
type LedgerHistoryResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// InitiatePaymentRequest is the request body for deposits and withdrawals.
type InitiatePaymentRequest struct {
	Gateway string `json:"gateway" binding:"required,oneof=mpesa paypal"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	Phone   string `json:"phone,omitempty" binding:"omitempty,safe_id"`
}

// PendingPaymentResponse is the response body for a gateway payment.
type PendingPaymentResponse struct {
	ID         string  `json:"id"`
	Gateway    string  `json:"gateway"`
	GatewayRef string  `json:"gateway_ref"`
	Amount     int64   `json:"amount"`
	Direction  string  `json:"direction"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	ResolvedAt *string `json:"resolved_at,omitempty"`
}

// PaymentListResponse wraps a payment list.
type PaymentListResponse struct {
	Items []PendingPaymentResponse `json:"items"`
}

// SettleRequest is the request body for settling a bet leg.
type SettleRequest struct {
	LegID   string `json:"leg_id" binding:"required,uuid"`
	Outcome string `json:"outcome" binding:"required,oneof=won lost"`
}

// StatsResponse is the response for the admin stats endpoint.
type StatsResponse struct {
	TotalGroups  int64 `json:"total_groups"`
	ActiveGroups int64 `json:"active_groups"`
	WonGroups    int64 `json:"won_groups"`
	LostGroups   int64 `json:"lost_groups"`
	TotalStaked  int64 `json:"total_staked"`
	TotalPaidOut int64 `json:"total_paid_out"`
}

// MpesaCallbackItem is one name/value pair of STK callback metadata.
type MpesaCallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// MpesaCallback is the Daraja STK push result envelope.
type MpesaCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []MpesaCallbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// Amount extracts the paid amount from callback metadata, converted to
// cents. Daraja reports whole currency units.
func (m *MpesaCallback) Amount() int64 {
	for _, item := range m.Body.StkCallback.CallbackMetadata.Item {
		if item.Name != "Amount" {
			continue
		}
		if v, ok := item.Value.(float64); ok {
			// Daraja sends whole units; rounding guards against float
			// artifacts in fractional amounts.
			return int64(math.Round(v * 100))
		}
	}
	return 0
}

// PaypalWebhook is the subset of a PayPal webhook event we consume.
type PaypalWebhook struct {
	EventType string `json:"event_type" binding:"required"`
	Resource  struct {
		ID     string `json:"id" binding:"required"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
	} `json:"resource" binding:"required"`
}
