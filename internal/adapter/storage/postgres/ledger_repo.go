package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// CreateWallet inserts a zero-balance wallet for a user.
func (r *LedgerRepo) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetWallet fetches a wallet without locking.
func (r *LedgerRepo) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`

	w := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetWalletForUpdate fetches a wallet with a row lock. This MUST be called
// within a transaction; the lock serializes concurrent balance mutations
// for the same user.
func (r *LedgerRepo) GetWalletForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`

	w := &domain.Wallet{}
	err := tx.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateBalance sets the cached balance projection within a transaction.
func (r *LedgerRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`

	tag, err := tx.Exec(ctx, query, balance, userID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	return nil
}

// InsertEntry appends one ledger entry within a transaction.
func (r *LedgerRepo) InsertEntry(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, user_id, kind, amount, related_bet_id, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.UserID, e.Kind, e.Amount, e.RelatedBetID, e.ExternalRef, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// HasExternalRef checks for an existing entry with this external reference
// for the user and kind, inside the caller's transaction so the check and
// the insert see the same snapshot.
func (r *LedgerRepo) HasExternalRef(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, externalRef string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE user_id = $1 AND kind = $2 AND external_ref = $3)`

	var exists bool
	err := tx.QueryRow(ctx, query, userID, kind, externalRef).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check external ref: %w", err)
	}
	return exists, nil
}

// History fetches ledger entries newest first with keyset pagination.
// The returned cursor is empty when no further pages exist.
func (r *LedgerRepo) History(ctx context.Context, params ports.LedgerHistoryParams) ([]domain.LedgerEntry, string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}

	if params.Cursor != "" {
		cursorAt, cursorID, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("decode history cursor: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argIdx, argIdx+1))
		args = append(args, cursorAt, cursorID)
		argIdx += 2
	}

	query := fmt.Sprintf(`SELECT id, user_id, kind, amount, related_bet_id, external_ref, created_at
		FROM ledger_entries WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.RelatedBetID, &e.ExternalRef, &e.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate ledger entries: %w", err)
	}

	var next string
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return entries, next, nil
}

// SumEntries folds all of a user's entries into a balance.
func (r *LedgerRepo) SumEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// encodeCursor packs the keyset position as "<unix nanos>:<entry id>".
func encodeCursor(at time.Time, id uuid.UUID) string {
	return strconv.FormatInt(at.UnixNano(), 10) + ":" + id.String()
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor timestamp")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor id")
	}
	return time.Unix(0, nanos).UTC(), id, nil
}
