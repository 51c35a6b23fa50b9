package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/internal/core/ports/mocks"
	"github.com/batsonnoah58/betledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type paymentTestDeps struct {
	svc          *PaymentServiceImpl
	paymentRepo  *mocks.MockPaymentRepository
	ledgerRepo   *mocks.MockLedgerRepository
	confirmCache *mocks.MockConfirmationCache
	transactor   *mocks.MockDBTransactor
	mpesa        *mocks.MockGatewayClient
	publisher    *mocks.MockEventPublisher
	ctrl         *gomock.Controller
}

func setupPaymentService(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		paymentRepo:  mocks.NewMockPaymentRepository(ctrl),
		ledgerRepo:   mocks.NewMockLedgerRepository(ctrl),
		confirmCache: mocks.NewMockConfirmationCache(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		mpesa:        mocks.NewMockGatewayClient(ctrl),
		publisher:    mocks.NewMockEventPublisher(ctrl),
		ctrl:         ctrl,
	}
	d.mpesa.EXPECT().Name().Return(domain.GatewayMpesa).AnyTimes()
	d.svc = NewPaymentService(
		d.paymentRepo, NewLedgerStore(d.ledgerRepo), d.confirmCache, d.transactor,
		[]ports.GatewayClient{d.mpesa}, d.publisher, 15*time.Minute, zerolog.Nop(),
	)
	return d
}

// ==================== Initiate Tests ====================

func TestPaymentService_InitiateDeposit_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.ledgerRepo.EXPECT().GetWallet(ctx, userID).Return(nil, nil)
	d.ledgerRepo.EXPECT().CreateWallet(ctx, gomock.Any()).Return(nil)
	d.mpesa.EXPECT().InitiateDeposit(ctx, gomock.Any()).Return("ws_CO_123", nil)
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p *domain.PendingPayment) error {
			assert.Equal(t, domain.PaymentStatusPending, p.Status)
			assert.Equal(t, domain.PaymentIn, p.Direction)
			assert.Equal(t, "ws_CO_123", p.GatewayRef)
			return nil
		})

	payment, err := d.svc.InitiateDeposit(ctx, ports.InitiatePaymentRequest{
		UserID:  userID,
		Gateway: domain.GatewayMpesa,
		Amount:  50000,
		Phone:   "254700000001",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), payment.Amount)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
}

func TestPaymentService_InitiateDeposit_InvalidAmount(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.InitiateDeposit(context.Background(), ports.InitiatePaymentRequest{
		UserID: uuid.New(), Gateway: domain.GatewayMpesa, Amount: 0,
	})
	require.Error(t, err)
	assert.Equal(t, "GW_003", err.(*apperror.AppError).Code)
}

func TestPaymentService_InitiateDeposit_GatewayDown(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.ledgerRepo.EXPECT().GetWallet(ctx, userID).Return(&domain.Wallet{UserID: userID}, nil)
	d.mpesa.EXPECT().InitiateDeposit(ctx, gomock.Any()).Return("", errors.New("connection refused"))

	_, err := d.svc.InitiateDeposit(ctx, ports.InitiatePaymentRequest{
		UserID: userID, Gateway: domain.GatewayMpesa, Amount: 50000,
	})
	require.Error(t, err)
	assert.Equal(t, "GW_004", err.(*apperror.AppError).Code)
}

func TestPaymentService_InitiateWithdrawal_InsufficientBalance(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.ledgerRepo.EXPECT().GetWallet(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: 1000}, nil)

	_, err := d.svc.InitiateWithdrawal(ctx, ports.InitiatePaymentRequest{
		UserID: userID, Gateway: domain.GatewayMpesa, Amount: 50000,
	})
	require.Error(t, err)
	assert.Equal(t, "WAL_001", err.(*apperror.AppError).Code)
}

func TestPaymentService_InitiateWithdrawal_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.ledgerRepo.EXPECT().GetWallet(ctx, userID).Return(&domain.Wallet{UserID: userID, Balance: 100000}, nil)
	d.mpesa.EXPECT().InitiatePayout(ctx, gomock.Any()).Return("AG_456", nil)
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	payment, err := d.svc.InitiateWithdrawal(ctx, ports.InitiatePaymentRequest{
		UserID: userID, Gateway: domain.GatewayMpesa, Amount: 50000, Phone: "254700000001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentOut, payment.Direction)
	assert.Equal(t, "AG_456", payment.GatewayRef)
}

// ==================== ConfirmGateway Tests ====================

func pendingPayment(userID uuid.UUID, direction domain.PaymentDirection, amount int64) *domain.PendingPayment {
	return &domain.PendingPayment{
		ID:         uuid.New(),
		UserID:     userID,
		Gateway:    domain.GatewayMpesa,
		GatewayRef: "ws_CO_123",
		Amount:     amount,
		Direction:  direction,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestPaymentService_ConfirmGateway_DepositCredited(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	p := pendingPayment(userID, domain.PaymentIn, 50000)
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "ws_CO_123").Return(p, nil)
	// Credit
	d.ledgerRepo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(&domain.Wallet{UserID: userID, Balance: 10000}, nil)
	d.ledgerRepo.EXPECT().HasExternalRef(ctx, tx, userID, domain.EntryKindDeposit, "ws_CO_123").Return(false, nil)
	d.ledgerRepo.EXPECT().InsertEntry(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, int64(50000), e.Amount)
			return nil
		})
	d.ledgerRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(60000)).Return(nil)
	d.paymentRepo.EXPECT().Resolve(ctx, tx, p.ID, domain.PaymentStatusConfirmed, gomock.Any()).Return(true, nil)
	d.confirmCache.EXPECT().Set(ctx, "ws_CO_123", gomock.Any(), confirmCacheTTL).Return(nil)
	d.publisher.EXPECT().PaymentConfirmed(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: true, Amount: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, result.Status)
	require.NotNil(t, result.ResolvedAt)
}

func TestPaymentService_ConfirmGateway_DuplicateFromCache(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := pendingPayment(uuid.New(), domain.PaymentIn, 50000)
	p.Status = domain.PaymentStatusConfirmed
	cached, _ := json.Marshal(p)

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(cached, nil)

	result, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: true, Amount: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, result.Status)
}

func TestPaymentService_ConfirmGateway_DuplicateAlreadyResolved(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := pendingPayment(uuid.New(), domain.PaymentIn, 50000)
	p.Status = domain.PaymentStatusConfirmed
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "ws_CO_123").Return(p, nil)
	// No ledger calls: the credit must not happen twice.

	result, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: true, Amount: 50000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, result.Status)
}

func TestPaymentService_ConfirmGateway_UnknownRef(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "nope").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "nope").Return(nil, nil)

	_, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{GatewayRef: "nope", Succeeded: true})
	require.Error(t, err)
	assert.Equal(t, "GW_001", err.(*apperror.AppError).Code)
}

func TestPaymentService_ConfirmGateway_FailureResolvesWithoutCredit(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := pendingPayment(uuid.New(), domain.PaymentIn, 50000)
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "ws_CO_123").Return(p, nil)
	d.paymentRepo.EXPECT().Resolve(ctx, tx, p.ID, domain.PaymentStatusFailed, gomock.Any()).Return(true, nil)
	d.confirmCache.EXPECT().Set(ctx, "ws_CO_123", gomock.Any(), confirmCacheTTL).Return(nil)

	result, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: false,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, result.Status)
}

func TestPaymentService_ConfirmGateway_AmountMismatch(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	p := pendingPayment(uuid.New(), domain.PaymentIn, 50000)
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "ws_CO_123").Return(p, nil)

	_, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: true, Amount: 99999,
	})
	require.Error(t, err)
	assert.Equal(t, "GW_003", err.(*apperror.AppError).Code)
}

func TestPaymentService_ConfirmGateway_WithdrawalDebits(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	p := pendingPayment(userID, domain.PaymentOut, 30000)
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "ws_CO_123").Return(p, nil)
	d.ledgerRepo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(&domain.Wallet{UserID: userID, Balance: 100000}, nil)
	d.ledgerRepo.EXPECT().HasExternalRef(ctx, tx, userID, domain.EntryKindWithdrawal, "ws_CO_123").Return(false, nil)
	d.ledgerRepo.EXPECT().InsertEntry(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.EntryKindWithdrawal, e.Kind)
			assert.Equal(t, int64(-30000), e.Amount)
			return nil
		})
	d.ledgerRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(70000)).Return(nil)
	d.paymentRepo.EXPECT().Resolve(ctx, tx, p.ID, domain.PaymentStatusConfirmed, gomock.Any()).Return(true, nil)
	d.confirmCache.EXPECT().Set(ctx, "ws_CO_123", gomock.Any(), confirmCacheTTL).Return(nil)
	d.publisher.EXPECT().PaymentConfirmed(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: true, Amount: 30000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, result.Status)
}

func TestPaymentService_ConfirmGateway_WithdrawalShortfallFails(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	p := pendingPayment(userID, domain.PaymentOut, 30000)
	tx := &mockTx{}

	d.confirmCache.EXPECT().Get(ctx, "ws_CO_123").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().GetByGatewayRefForUpdate(ctx, tx, "ws_CO_123").Return(p, nil)
	d.ledgerRepo.EXPECT().GetWalletForUpdate(ctx, tx, userID).Return(&domain.Wallet{UserID: userID, Balance: 5000}, nil)
	d.ledgerRepo.EXPECT().HasExternalRef(ctx, tx, userID, domain.EntryKindWithdrawal, "ws_CO_123").Return(false, nil)
	// The wallet cannot cover the payout anymore; the payment fails
	// instead of overdrawing.
	d.paymentRepo.EXPECT().Resolve(ctx, tx, p.ID, domain.PaymentStatusFailed, gomock.Any()).Return(true, nil)
	d.confirmCache.EXPECT().Set(ctx, "ws_CO_123", gomock.Any(), confirmCacheTTL).Return(nil)

	result, err := d.svc.ConfirmGateway(ctx, ports.GatewayConfirmation{
		Gateway: domain.GatewayMpesa, GatewayRef: "ws_CO_123", Succeeded: true, Amount: 30000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, result.Status)
}

// ==================== ExpirePending Tests ====================

func TestPaymentService_ExpirePending(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.paymentRepo.EXPECT().ExpireOlderThan(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, cutoff time.Time) (int64, error) {
			assert.WithinDuration(t, time.Now().UTC().Add(-15*time.Minute), cutoff, time.Minute)
			return 3, nil
		})

	n, err := d.svc.ExpirePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
