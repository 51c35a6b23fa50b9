package service

import (
	"context"
	"fmt"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	betRepo    ports.BetRepository
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(ledgerRepo ports.LedgerRepository, betRepo ports.BetRepository, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		ledgerRepo: ledgerRepo,
		betRepo:    betRepo,
		log:        log,
	}
}

// Balance returns the user's balance. A user without a wallet yet has a
// balance of zero.
func (s *WalletServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	wallet, err := s.ledgerRepo.GetWallet(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

// History returns a page of the user's ledger entries, newest first,
// with an opaque cursor to the next page.
func (s *WalletServiceImpl) History(ctx context.Context, params ports.LedgerHistoryParams) ([]domain.LedgerEntry, string, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	entries, next, err := s.ledgerRepo.History(ctx, params)
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("ledger history: %w", err))
	}
	return entries, next, nil
}

// Stats returns aggregated betting figures for the admin dashboard.
func (s *WalletServiceImpl) Stats(ctx context.Context) (*ports.BetStats, error) {
	stats, err := s.betRepo.Stats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("bet stats: %w", err))
	}
	return stats, nil
}
