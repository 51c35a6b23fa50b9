package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new pending payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.PendingPayment) error {
	query := `INSERT INTO pending_payments (id, user_id, gateway, gateway_ref, amount, direction, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.UserID, p.Gateway, p.GatewayRef, p.Amount, p.Direction, p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending payment: %w", err)
	}
	return nil
}

// GetByGatewayRef fetches a payment by its gateway reference (non-locking).
func (r *PaymentRepo) GetByGatewayRef(ctx context.Context, ref string) (*domain.PendingPayment, error) {
	query := `SELECT id, user_id, gateway, gateway_ref, amount, direction, status, created_at, resolved_at
		FROM pending_payments WHERE gateway_ref = $1`

	return scanPayment(r.pool.QueryRow(ctx, query, ref))
}

// GetByGatewayRefForUpdate fetches a payment with a row lock. This MUST be
// called within a transaction; it serializes duplicate webhook deliveries
// for the same gateway reference.
func (r *PaymentRepo) GetByGatewayRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.PendingPayment, error) {
	query := `SELECT id, user_id, gateway, gateway_ref, amount, direction, status, created_at, resolved_at
		FROM pending_payments WHERE gateway_ref = $1 FOR UPDATE`

	return scanPayment(tx.QueryRow(ctx, query, ref))
}

// Resolve transitions a payment pending -> status. Zero rows affected
// means the payment already reached a terminal status.
func (r *PaymentRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, resolvedAt time.Time) (bool, error) {
	query := `UPDATE pending_payments SET status = $1, resolved_at = $2 WHERE id = $3 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return false, fmt.Errorf("resolve pending payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireOlderThan fails every payment still pending past the cutoff.
func (r *PaymentRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE pending_payments SET status = 'failed', resolved_at = NOW()
		WHERE status = 'pending' AND created_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByUser fetches a user's most recent payments.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PendingPayment, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, user_id, gateway, gateway_ref, amount, direction, status, created_at, resolved_at
		FROM pending_payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PendingPayment
	for rows.Next() {
		p := domain.PendingPayment{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Gateway, &p.GatewayRef, &p.Amount,
			&p.Direction, &p.Status, &p.CreatedAt, &p.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending payments: %w", err)
	}
	return payments, nil
}

// scanPayment is a helper to scan a single row into a PendingPayment.
func scanPayment(row pgx.Row) (*domain.PendingPayment, error) {
	p := &domain.PendingPayment{}
	err := row.Scan(&p.ID, &p.UserID, &p.Gateway, &p.GatewayRef, &p.Amount,
		&p.Direction, &p.Status, &p.CreatedAt, &p.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pending payment: %w", err)
	}
	return p, nil
}
