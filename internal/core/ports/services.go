package ports

import (
	"context"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"

	"github.com/google/uuid"
)

// --- Service Ports (Business Logic) ---

// BettingService defines stake reservation and settlement.
type BettingService interface {
	// Reserve debits the stake and records the bet group as one atomic
	// unit; no partial state is ever observable.
	Reserve(ctx context.Context, req ReserveRequest) (*domain.BetGroup, error)
	// Settle resolves one leg; the group resolves lost on the first lost
	// leg and won when the last leg settles won, crediting the payout
	// exactly once.
	Settle(ctx context.Context, req SettleRequest) (*domain.BetGroup, error)
	ListBets(ctx context.Context, params BetListParams) ([]domain.BetGroup, int64, error)
}

// ReserveLeg is one selection within a stake reservation.
type ReserveLeg struct {
	GameID         uuid.UUID
	MarketID       *uuid.UUID
	MarketOptionID *uuid.UUID
	Odds           float64
	Label          string
}

// ReserveRequest holds validated input for placing a bet group.
type ReserveRequest struct {
	UserID uuid.UUID
	Stake  int64 // In cents
	Legs   []ReserveLeg
}

// SettleRequest holds input for settling a bet leg.
type SettleRequest struct {
	LegID   uuid.UUID
	Outcome domain.Outcome
}

// PaymentService defines gateway payment initiation and crediting.
type PaymentService interface {
	InitiateDeposit(ctx context.Context, req InitiatePaymentRequest) (*domain.PendingPayment, error)
	InitiateWithdrawal(ctx context.Context, req InitiatePaymentRequest) (*domain.PendingPayment, error)
	// ConfirmGateway applies an externally confirmed payment exactly once;
	// re-delivered confirmations succeed without a second credit.
	ConfirmGateway(ctx context.Context, req GatewayConfirmation) (*domain.PendingPayment, error)
	// ExpirePending fails payments stuck pending past the policy timeout.
	ExpirePending(ctx context.Context) (int64, error)
	ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PendingPayment, error)
}

// InitiatePaymentRequest holds input for starting a gateway payment.
type InitiatePaymentRequest struct {
	UserID  uuid.UUID
	Gateway domain.Gateway
	Amount  int64  // In cents
	Phone   string // M-Pesa MSISDN, ignored by PayPal
}

// GatewayConfirmation is the normalized shape of a gateway callback or
// verification poll result.
type GatewayConfirmation struct {
	Gateway    domain.Gateway
	GatewayRef string
	Succeeded  bool
	Amount     int64 // Amount reported by the gateway, in cents
}

// WalletService defines balance and history reads plus admin reporting.
type WalletService interface {
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, params LedgerHistoryParams) ([]domain.LedgerEntry, string, error)
	Stats(ctx context.Context) (*BetStats, error)
}

// TokenService validates JWTs minted by the external identity provider.
// Generate mirrors the provider's token shape for local development and tests.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// ConfirmationCache is the Redis-layer idempotency check for gateway
// confirmations (fast path; the ledger's external_ref guard is the backstop).
type ConfirmationCache interface {
	Get(ctx context.Context, gatewayRef string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, gatewayRef string, value []byte, ttl time.Duration) error
}

// OddsCache caches catalog odds so reservations don't hit Postgres for
// every leg validation.
type OddsCache interface {
	Get(ctx context.Context, optionID uuid.UUID) (float64, bool, error)
	Set(ctx context.Context, optionID uuid.UUID, odds float64, ttl time.Duration) error
}

// GatewayClient is a thin client for one payment provider's initiate call.
type GatewayClient interface {
	Name() domain.Gateway
	// InitiateDeposit starts a collection (e.g. STK push, order creation)
	// and returns the gateway's reference for the attempt.
	InitiateDeposit(ctx context.Context, req GatewayCharge) (string, error)
	// InitiatePayout starts a disbursement to the user.
	InitiatePayout(ctx context.Context, req GatewayCharge) (string, error)
}

// GatewayCharge holds input for a gateway initiate call.
type GatewayCharge struct {
	UserID    uuid.UUID
	Amount    int64 // In cents
	Phone     string
	Reference string // Our id for the attempt, echoed back in callbacks
}

// --- Domain Events ---

// BetPlacedEvent is published after a stake reservation commits.
type BetPlacedEvent struct {
	GroupID      uuid.UUID `json:"group_id"`
	UserID       uuid.UUID `json:"user_id"`
	Stake        int64     `json:"stake"`
	CombinedOdds float64   `json:"combined_odds"`
	Legs         int       `json:"legs"`
	TsUnixMs     int64     `json:"ts_unix_ms"`
}

// BetSettledEvent is published after a leg settlement commits.
type BetSettledEvent struct {
	GroupID     uuid.UUID `json:"group_id"`
	LegID       uuid.UUID `json:"leg_id"`
	UserID      uuid.UUID `json:"user_id"`
	Outcome     string    `json:"outcome"`
	GroupStatus string    `json:"group_status"`
	Payout      int64     `json:"payout"` // 0 unless the group resolved won
	TsUnixMs    int64     `json:"ts_unix_ms"`
}

// PaymentConfirmedEvent is published after a gateway confirmation commits.
type PaymentConfirmedEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	UserID     uuid.UUID `json:"user_id"`
	Gateway    string    `json:"gateway"`
	GatewayRef string    `json:"gateway_ref"`
	Amount     int64     `json:"amount"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status"`
	TsUnixMs   int64     `json:"ts_unix_ms"`
}

// EventPublisher publishes domain events after commit (best-effort).
type EventPublisher interface {
	BetPlaced(ctx context.Context, e BetPlacedEvent) error
	BetSettled(ctx context.Context, e BetSettledEvent) error
	PaymentConfirmed(ctx context.Context, e PaymentConfirmedEvent) error
}
