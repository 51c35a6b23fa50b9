package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gateway identifies the external payment provider.
type Gateway string

const (
	GatewayMpesa  Gateway = "mpesa"
	GatewayPaypal Gateway = "paypal"
)

// PaymentDirection distinguishes deposits from withdrawals.
type PaymentDirection string

const (
	PaymentIn  PaymentDirection = "in"
	PaymentOut PaymentDirection = "out"
)

// PaymentStatus is the lifecycle of a gateway-initiated payment.
// pending -> confirmed or pending -> failed, each terminal.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PendingPayment tracks an externally initiated deposit or withdrawal
// awaiting gateway confirmation. Exactly one ledger entry is written when
// it transitions to confirmed; a failed or expired payment writes none.
type PendingPayment struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	Gateway    Gateway          `json:"gateway"`
	GatewayRef string           `json:"gateway_ref"` // Checkout/order id, unique per gateway attempt
	Amount     int64            `json:"amount"`      // In cents
	Direction  PaymentDirection `json:"direction"`
	Status     PaymentStatus    `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// IsResolved reports whether the payment has reached a terminal status.
func (p *PendingPayment) IsResolved() bool {
	return p.Status == PaymentStatusConfirmed || p.Status == PaymentStatusFailed
}

// EntryKind returns the ledger entry kind a confirmation of this payment
// produces.
func (p *PendingPayment) EntryKind() EntryKind {
	if p.Direction == PaymentOut {
		return EntryKindWithdrawal
	}
	return EntryKindDeposit
}

// SignedAmount returns the amount with the sign the ledger expects for
// this payment's direction.
func (p *PendingPayment) SignedAmount() int64 {
	if p.Direction == PaymentOut {
		return -p.Amount
	}
	return p.Amount
}
