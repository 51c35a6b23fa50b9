package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/internal/metrics"
	"github.com/batsonnoah58/betledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const confirmCacheTTL = 24 * time.Hour

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	paymentRepo  ports.PaymentRepository
	ledger       *LedgerStore
	confirmCache ports.ConfirmationCache
	transactor   ports.DBTransactor
	gateways     map[domain.Gateway]ports.GatewayClient
	publisher    ports.EventPublisher
	pendingTTL   time.Duration
	log          zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	ledger *LedgerStore,
	confirmCache ports.ConfirmationCache,
	transactor ports.DBTransactor,
	clients []ports.GatewayClient,
	publisher ports.EventPublisher,
	pendingTTL time.Duration,
	log zerolog.Logger,
) *PaymentServiceImpl {
	gateways := make(map[domain.Gateway]ports.GatewayClient, len(clients))
	for _, c := range clients {
		gateways[c.Name()] = c
	}
	return &PaymentServiceImpl{
		paymentRepo:  paymentRepo,
		ledger:       ledger,
		confirmCache: confirmCache,
		transactor:   transactor,
		gateways:     gateways,
		publisher:    publisher,
		pendingTTL:   pendingTTL,
		log:          log,
	}
}

// InitiateDeposit starts a gateway collection and records the attempt as
// a pending payment. Money moves only when the gateway confirms.
func (s *PaymentServiceImpl) InitiateDeposit(ctx context.Context, req ports.InitiatePaymentRequest) (*domain.PendingPayment, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	client, ok := s.gateways[req.Gateway]
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unsupported gateway %q", req.Gateway))
	}

	if err := s.ledger.EnsureWallet(ctx, req.UserID); err != nil {
		return nil, err
	}

	return s.initiate(ctx, client, req, domain.PaymentIn)
}

// InitiateWithdrawal starts a gateway payout. The balance check here is
// advisory; the debit happens at confirmation under the wallet lock.
func (s *PaymentServiceImpl) InitiateWithdrawal(ctx context.Context, req ports.InitiatePaymentRequest) (*domain.PendingPayment, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	client, ok := s.gateways[req.Gateway]
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unsupported gateway %q", req.Gateway))
	}

	wallet, err := s.ledger.Wallet(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.Balance < req.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	return s.initiate(ctx, client, req, domain.PaymentOut)
}

func (s *PaymentServiceImpl) initiate(ctx context.Context, client ports.GatewayClient, req ports.InitiatePaymentRequest, direction domain.PaymentDirection) (*domain.PendingPayment, error) {
	id := uuid.New()
	charge := ports.GatewayCharge{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Phone:     req.Phone,
		Reference: id.String(),
	}

	var gatewayRef string
	var err error
	if direction == domain.PaymentIn {
		gatewayRef, err = client.InitiateDeposit(ctx, charge)
	} else {
		gatewayRef, err = client.InitiatePayout(ctx, charge)
	}
	if err != nil {
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	payment := &domain.PendingPayment{
		ID:         id,
		UserID:     req.UserID,
		Gateway:    req.Gateway,
		GatewayRef: gatewayRef,
		Amount:     req.Amount,
		Direction:  direction,
		Status:     domain.PaymentStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create pending payment: %w", err))
	}

	s.log.Info().
		Str("payment_id", id.String()).
		Str("user_id", req.UserID.String()).
		Str("gateway", string(req.Gateway)).
		Str("gateway_ref", gatewayRef).
		Str("direction", string(direction)).
		Int64("amount", req.Amount).
		Msg("Gateway payment initiated")

	return payment, nil
}

// ConfirmGateway applies a gateway confirmation exactly once. Redelivered
// callbacks hit the Redis cache or the resolved-status check and return
// the prior result without touching the wallet.
func (s *PaymentServiceImpl) ConfirmGateway(ctx context.Context, req ports.GatewayConfirmation) (*domain.PendingPayment, error) {
	// Layer 1: Redis idempotency check
	cached, err := s.confirmCache.Get(ctx, req.GatewayRef)
	if err != nil {
		s.log.Warn().Err(err).Str("gateway_ref", req.GatewayRef).Msg("redis confirm check failed, falling through to DB")
	}
	if cached != nil {
		metrics.DuplicateConfirmations.Inc()
		return s.unmarshalCachedPayment(cached)
	}

	// Layer 2: row lock + status check in the database
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetByGatewayRefForUpdate(ctx, dbTx, req.GatewayRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock pending payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrUnknownPayment()
	}
	if payment.IsResolved() {
		metrics.DuplicateConfirmations.Inc()
		s.log.Info().
			Str("gateway_ref", req.GatewayRef).
			Str("status", string(payment.Status)).
			Msg("Duplicate gateway confirmation suppressed")
		return payment, nil
	}

	now := time.Now().UTC()

	if !req.Succeeded {
		return s.resolve(ctx, dbTx, payment, domain.PaymentStatusFailed, now)
	}
	if req.Amount != 0 && req.Amount != payment.Amount {
		return nil, apperror.ErrInvalidAmount()
	}

	ref := payment.GatewayRef
	_, err = s.ledger.Append(ctx, dbTx, payment.UserID, payment.EntryKind(), payment.SignedAmount(), nil, &ref)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case "WAL_001":
				// A withdrawal the wallet can no longer cover fails
				// instead of overdrawing.
				if payment.Direction == domain.PaymentOut {
					return s.resolve(ctx, dbTx, payment, domain.PaymentStatusFailed, now)
				}
			case "WAL_002":
				// The ledger already holds this external ref, so the
				// credit happened; only the status row needs healing.
				metrics.DuplicateConfirmations.Inc()
				return s.resolve(ctx, dbTx, payment, domain.PaymentStatusConfirmed, now)
			}
		}
		return nil, err
	}

	return s.resolve(ctx, dbTx, payment, domain.PaymentStatusConfirmed, now)
}

// resolve finishes the confirmation transaction and runs the post-commit
// side effects.
func (s *PaymentServiceImpl) resolve(ctx context.Context, dbTx pgx.Tx, payment *domain.PendingPayment, status domain.PaymentStatus, now time.Time) (*domain.PendingPayment, error) {
	ok, err := s.paymentRepo.Resolve(ctx, dbTx, payment.ID, status, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve payment: %w", err))
	}
	if !ok {
		metrics.DuplicateConfirmations.Inc()
		return payment, nil
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	payment.Status = status
	payment.ResolvedAt = &now

	if data, err := json.Marshal(payment); err == nil {
		if err := s.confirmCache.Set(ctx, payment.GatewayRef, data, confirmCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("gateway_ref", payment.GatewayRef).Msg("confirm cache write failed")
		}
	}

	metrics.PaymentsConfirmed.WithLabelValues(string(payment.Gateway), string(status)).Inc()
	if status == domain.PaymentStatusConfirmed {
		if err := s.publisher.PaymentConfirmed(ctx, ports.PaymentConfirmedEvent{
			PaymentID:  payment.ID,
			UserID:     payment.UserID,
			Gateway:    string(payment.Gateway),
			GatewayRef: payment.GatewayRef,
			Amount:     payment.Amount,
			Direction:  string(payment.Direction),
			Status:     string(status),
		}); err != nil {
			s.log.Warn().Err(err).Str("gateway_ref", payment.GatewayRef).Msg("payment confirmed event publish failed")
		}
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("gateway_ref", payment.GatewayRef).
		Str("status", string(status)).
		Int64("amount", payment.Amount).
		Msg("Gateway payment resolved")

	return payment, nil
}

func (s *PaymentServiceImpl) unmarshalCachedPayment(data []byte) (*domain.PendingPayment, error) {
	var p domain.PendingPayment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached payment: %w", err))
	}
	return &p, nil
}

// ExpirePending fails payments stuck pending past the policy timeout and
// returns how many were expired.
func (s *PaymentServiceImpl) ExpirePending(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.pendingTTL)
	n, err := s.paymentRepo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("expire pending payments: %w", err))
	}
	if n > 0 {
		metrics.PaymentsExpired.Add(float64(n))
		s.log.Info().Int64("expired", n).Time("cutoff", cutoff).Msg("Expired stale pending payments")
	}
	return n, nil
}

// ListPayments lists a user's most recent payments.
func (s *PaymentServiceImpl) ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PendingPayment, error) {
	payments, err := s.paymentRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payments: %w", err))
	}
	return payments, nil
}
