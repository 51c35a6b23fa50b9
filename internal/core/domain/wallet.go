package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's current balance in cents. The balance is a cached
// projection of the ledger: at every serialization point it equals the sum
// of the user's LedgerEntry amounts. It is mutated only inside the same
// database transaction that appends the corresponding entry.
type Wallet struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // In cents, never negative
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindDeposit     EntryKind = "deposit"
	EntryKindWithdrawal  EntryKind = "withdrawal"
	EntryKindBetPlaced   EntryKind = "bet_placed"
	EntryKindBetWon      EntryKind = "bet_won"
	EntryKindBetRefunded EntryKind = "bet_refunded"
)

// LedgerEntry is one immutable, append-only record of a balance change.
// Amount carries its sign: debits are negative, credits positive.
type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Kind         EntryKind  `json:"kind"`
	Amount       int64      `json:"amount"` // In cents, signed
	RelatedBetID *uuid.UUID `json:"related_bet_id,omitempty"`
	ExternalRef  *string    `json:"external_ref,omitempty"` // Gateway transaction id, for dedup
	CreatedAt    time.Time  `json:"created_at"`
}

// IsDebit reports whether the entry reduces the balance.
func (e *LedgerEntry) IsDebit() bool {
	return e.Amount < 0
}
