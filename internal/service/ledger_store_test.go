package service

import (
	"context"
	"errors"
	"testing"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports/mocks"
	"github.com/batsonnoah58/betledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func TestLedgerStore_Append_Credit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	store := NewLedgerStore(repo)

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	ref := "ws_CO_123"

	repo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(&domain.Wallet{UserID: userID, Balance: 100000}, nil)
	repo.EXPECT().HasExternalRef(ctx, tx, userID, domain.EntryKindDeposit, ref).Return(false, nil)
	repo.EXPECT().InsertEntry(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, int64(50000), e.Amount)
			assert.Equal(t, domain.EntryKindDeposit, e.Kind)
			require.NotNil(t, e.ExternalRef)
			assert.Equal(t, ref, *e.ExternalRef)
			return nil
		})
	repo.EXPECT().UpdateBalance(ctx, tx, userID, int64(150000)).Return(nil)

	entry, err := store.Append(ctx, tx, userID, domain.EntryKindDeposit, 50000, nil, &ref)
	require.NoError(t, err)
	assert.Equal(t, userID, entry.UserID)
}

func TestLedgerStore_Append_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	store := NewLedgerStore(repo)

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	repo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(&domain.Wallet{UserID: userID, Balance: 500}, nil)

	_, err := store.Append(ctx, tx, userID, domain.EntryKindBetPlaced, -10000, nil, nil)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "WAL_001", appErr.Code)
}

func TestLedgerStore_Append_DuplicateExternalRef(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	store := NewLedgerStore(repo)

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}
	ref := "ws_CO_dup"

	repo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(&domain.Wallet{UserID: userID, Balance: 100000}, nil)
	repo.EXPECT().HasExternalRef(ctx, tx, userID, domain.EntryKindDeposit, ref).Return(true, nil)

	_, err := store.Append(ctx, tx, userID, domain.EntryKindDeposit, 50000, nil, &ref)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "WAL_002", appErr.Code)
}

func TestLedgerStore_Append_MissingWallet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	store := NewLedgerStore(repo)

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	repo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(nil, nil)

	_, err := store.Append(ctx, tx, userID, domain.EntryKindDeposit, 1000, nil, nil)
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok)
	assert.Equal(t, "WAL_003", appErr.Code)
}

func TestLedgerStore_Wallet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	store := NewLedgerStore(repo)

	ctx := context.Background()
	userID := uuid.New()

	repo.EXPECT().GetWallet(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: 42000}, nil)
	wallet, err := store.Wallet(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.Equal(t, int64(42000), wallet.Balance)

	// Missing wallet is nil, not an error; callers decide what that means.
	repo.EXPECT().GetWallet(ctx, userID).Return(nil, nil)
	wallet, err = store.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, wallet)

	repo.EXPECT().GetWallet(ctx, userID).Return(nil, errors.New("connection reset"))
	_, err = store.Wallet(ctx, userID)
	require.Error(t, err)
	assert.Equal(t, "SYS_002", err.(*apperror.AppError).Code)
}

func TestLedgerStore_EnsureWallet_CreatesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	store := NewLedgerStore(repo)

	ctx := context.Background()
	userID := uuid.New()

	repo.EXPECT().GetWallet(ctx, userID).Return(nil, nil)
	repo.EXPECT().CreateWallet(ctx, gomock.Any()).Return(nil)

	require.NoError(t, store.EnsureWallet(ctx, userID))

	// Existing wallet short-circuits.
	repo.EXPECT().GetWallet(ctx, userID).Return(&domain.Wallet{UserID: userID}, nil)
	require.NoError(t, store.EnsureWallet(ctx, userID))
}
