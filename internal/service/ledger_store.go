package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// LedgerStore is the single write path for wallet money. Every mutation
// locks the wallet row, appends one ledger entry and moves the cached
// balance in the same transaction, so the balance always equals the fold
// of the entries.
type LedgerStore struct {
	repo ports.LedgerRepository
}

// NewLedgerStore creates a LedgerStore over a ledger repository.
func NewLedgerStore(repo ports.LedgerRepository) *LedgerStore {
	return &LedgerStore{repo: repo}
}

// Append applies one signed amount to the user's wallet inside the
// caller's transaction. A negative resulting balance is rejected, as is
// a duplicate external reference for the same user and kind.
func (s *LedgerStore) Append(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, amount int64, relatedBetID *uuid.UUID, externalRef *string) (*domain.LedgerEntry, error) {
	wallet, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if externalRef != nil {
		exists, err := s.repo.HasExternalRef(ctx, tx, userID, kind, *externalRef)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check external ref: %w", err))
		}
		if exists {
			return nil, apperror.ErrDuplicateExternalRef()
		}
	}

	newBalance := wallet.Balance + amount
	if newBalance < 0 {
		return nil, apperror.ErrInsufficientFunds()
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		RelatedBetID: relatedBetID,
		ExternalRef:  externalRef,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
		// Two confirmations can race past the HasExternalRef check; the
		// unique index is the backstop.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperror.ErrDuplicateExternalRef()
		}
		return nil, apperror.InternalError(fmt.Errorf("insert ledger entry: %w", err))
	}
	if err := s.repo.UpdateBalance(ctx, tx, userID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	return entry, nil
}

// Wallet reads the user's wallet outside any transaction, nil if it
// does not exist. Callers needing the balance for a decision inside a
// money mutation must go through Append instead.
func (s *LedgerStore) Wallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	return wallet, nil
}

// EnsureWallet creates the user's wallet if it does not exist yet.
// Wallets are created lazily on the first deposit.
func (s *LedgerStore) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	wallet, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return nil
	}

	now := time.Now().UTC()
	w := &domain.Wallet{
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateWallet(ctx, w); err != nil {
		return apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	return nil
}
