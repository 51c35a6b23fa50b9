package ports

import (
	"context"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository defines persistence for wallets and the ledger.
// Methods accepting pgx.Tx are used inside transaction blocks so a balance
// update and its entry land atomically, with the wallet row locked.
type LedgerRepository interface {
	CreateWallet(ctx context.Context, w *domain.Wallet) error
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance int64) error
	InsertEntry(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	// HasExternalRef reports whether an entry with this external reference
	// already exists for the user and kind (gateway callback dedup).
	HasExternalRef(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, externalRef string) (bool, error)
	History(ctx context.Context, params LedgerHistoryParams) ([]domain.LedgerEntry, string, error)
	// SumEntries folds the user's ledger to a balance; used by the
	// reconciliation sweep to verify the cached projection.
	SumEntries(ctx context.Context, userID uuid.UUID) (int64, error)
}

// LedgerHistoryParams holds filter + cursor pagination for ledger history.
// Cursor is opaque to callers; empty means start from the newest entry.
type LedgerHistoryParams struct {
	UserID uuid.UUID
	Kind   *domain.EntryKind
	Limit  int
	Cursor string
}

// BetRepository defines persistence for bet groups and their legs.
type BetRepository interface {
	// CreateGroup inserts a group and all its legs; must be called inside
	// the same transaction that debits the stake.
	CreateGroup(ctx context.Context, tx pgx.Tx, g *domain.BetGroup) error
	GetGroup(ctx context.Context, id uuid.UUID) (*domain.BetGroup, error)
	GetGroupForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BetGroup, error)
	GetLeg(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	// SettleLeg transitions a leg active -> status. Returns false if the
	// leg was not active (already settled).
	SettleLeg(ctx context.Context, tx pgx.Tx, legID uuid.UUID, status domain.BetStatus, settledAt time.Time) (bool, error)
	// SettleGroup transitions a group active -> status with the same
	// check-and-set contract as SettleLeg.
	SettleGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, status domain.BetStatus, settledAt time.Time) (bool, error)
	LegsByGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) ([]domain.Bet, error)
	ListByUser(ctx context.Context, params BetListParams) ([]domain.BetGroup, int64, error)
	Stats(ctx context.Context) (*BetStats, error)
}

// BetSort selects the ordering for bet listings.
type BetSort string

const (
	BetSortRecent   BetSort = "recent"
	BetSortStake    BetSort = "stake"
	BetSortWinnings BetSort = "potential_winnings"
)

// BetListParams holds filter + pagination for listing a user's bets.
type BetListParams struct {
	UserID   uuid.UUID
	Settled  *bool  // nil = all, false = active only, true = settled only
	Query    string // free-text match against leg labels
	Sort     BetSort
	Page     int
	PageSize int
}

// BetStats holds aggregated figures for the admin dashboard.
type BetStats struct {
	TotalGroups  int64
	ActiveGroups int64
	WonGroups    int64
	LostGroups   int64
	TotalStaked  int64
	TotalPaidOut int64
}

// PaymentRepository defines persistence for gateway-initiated payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.PendingPayment) error
	GetByGatewayRef(ctx context.Context, ref string) (*domain.PendingPayment, error)
	GetByGatewayRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.PendingPayment, error)
	// Resolve transitions a payment pending -> status. Returns false if the
	// payment was already resolved.
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, resolvedAt time.Time) (bool, error)
	// ExpireOlderThan fails every payment still pending past the cutoff and
	// returns how many were expired.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PendingPayment, error)
}

// CatalogRepository reads the externally owned game/market catalog.
type CatalogRepository interface {
	GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	GetMarketOption(ctx context.Context, id uuid.UUID) (*domain.MarketOption, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
