package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BetRepo implements ports.BetRepository.
type BetRepo struct {
	pool Pool
}

// NewBetRepo creates a new BetRepo.
func NewBetRepo(pool Pool) *BetRepo {
	return &BetRepo{pool: pool}
}

// CreateGroup inserts a bet group and all its legs within a transaction.
// The caller debits the stake in the same transaction, so a failure here
// rolls back the debit too.
func (r *BetRepo) CreateGroup(ctx context.Context, tx pgx.Tx, g *domain.BetGroup) error {
	groupQuery := `INSERT INTO bet_groups (id, user_id, stake, combined_odds, potential_winnings, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, groupQuery,
		g.ID, g.UserID, g.Stake, g.CombinedOdds, g.PotentialWinnings, g.Status, g.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bet group: %w", err)
	}

	legQuery := `INSERT INTO bets (id, group_id, user_id, game_id, market_id, market_option_id, label, odds, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i := range g.Legs {
		leg := &g.Legs[i]
		_, err := tx.Exec(ctx, legQuery,
			leg.ID, g.ID, leg.UserID, leg.GameID, leg.MarketID, leg.MarketOptionID,
			leg.Label, leg.Odds, leg.Status,
		)
		if err != nil {
			return fmt.Errorf("insert bet leg: %w", err)
		}
	}
	return nil
}

// GetGroup fetches a bet group with its legs (non-locking read).
func (r *BetRepo) GetGroup(ctx context.Context, id uuid.UUID) (*domain.BetGroup, error) {
	query := `SELECT id, user_id, stake, combined_odds, potential_winnings, status, placed_at, settled_at
		FROM bet_groups WHERE id = $1`

	g, err := scanGroup(r.pool.QueryRow(ctx, query, id))
	if err != nil || g == nil {
		return g, err
	}

	legs, err := r.legsByGroup(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	g.Legs = legs
	return g, nil
}

// GetGroupForUpdate fetches a bet group with a row lock. This MUST be
// called within a transaction; it serializes concurrent settlements of
// legs in the same group.
func (r *BetRepo) GetGroupForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BetGroup, error) {
	query := `SELECT id, user_id, stake, combined_odds, potential_winnings, status, placed_at, settled_at
		FROM bet_groups WHERE id = $1 FOR UPDATE`

	return scanGroup(tx.QueryRow(ctx, query, id))
}

// GetLeg fetches a single bet leg.
func (r *BetRepo) GetLeg(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	query := `SELECT id, group_id, user_id, game_id, market_id, market_option_id, label, odds, status, settled_at
		FROM bets WHERE id = $1`

	b := &domain.Bet{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.GroupID, &b.UserID, &b.GameID, &b.MarketID, &b.MarketOptionID,
		&b.Label, &b.Odds, &b.Status, &b.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bet leg: %w", err)
	}
	return b, nil
}

// SettleLeg transitions a leg active -> status. The WHERE clause is the
// check-and-set: zero rows affected means the leg was already settled.
func (r *BetRepo) SettleLeg(ctx context.Context, tx pgx.Tx, legID uuid.UUID, status domain.BetStatus, settledAt time.Time) (bool, error) {
	query := `UPDATE bets SET status = $1, settled_at = $2 WHERE id = $3 AND status = 'active'`

	tag, err := tx.Exec(ctx, query, status, settledAt, legID)
	if err != nil {
		return false, fmt.Errorf("settle bet leg: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SettleGroup transitions a group active -> status with the same
// check-and-set contract as SettleLeg. A terminal group is never rewritten,
// so the winning credit tied to the transition lands at most once.
func (r *BetRepo) SettleGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, status domain.BetStatus, settledAt time.Time) (bool, error) {
	query := `UPDATE bet_groups SET status = $1, settled_at = $2 WHERE id = $3 AND status = 'active'`

	tag, err := tx.Exec(ctx, query, status, settledAt, groupID)
	if err != nil {
		return false, fmt.Errorf("settle bet group: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LegsByGroup fetches a group's legs inside the caller's transaction.
func (r *BetRepo) LegsByGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) ([]domain.Bet, error) {
	return r.legsByGroup(ctx, tx, groupID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *BetRepo) legsByGroup(ctx context.Context, q querier, groupID uuid.UUID) ([]domain.Bet, error) {
	query := `SELECT id, group_id, user_id, game_id, market_id, market_option_id, label, odds, status, settled_at
		FROM bets WHERE group_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list bet legs: %w", err)
	}
	defer rows.Close()

	var legs []domain.Bet
	for rows.Next() {
		b := domain.Bet{}
		if err := rows.Scan(&b.ID, &b.GroupID, &b.UserID, &b.GameID, &b.MarketID, &b.MarketOptionID,
			&b.Label, &b.Odds, &b.Status, &b.SettledAt); err != nil {
			return nil, fmt.Errorf("scan bet leg: %w", err)
		}
		legs = append(legs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bet legs: %w", err)
	}
	return legs, nil
}

// ListByUser fetches a user's bet groups with filtering, free-text label
// search, sorting and pagination. Legs are attached to each group.
func (r *BetRepo) ListByUser(ctx context.Context, params ports.BetListParams) ([]domain.BetGroup, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("g.user_id = $%d", argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.Settled != nil {
		if *params.Settled {
			conditions = append(conditions, "g.status <> 'active'")
		} else {
			conditions = append(conditions, "g.status = 'active'")
		}
	}
	if params.Query != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM bets b WHERE b.group_id = g.id AND b.label ILIKE '%%' || $%d || '%%')", argIdx))
		args = append(args, params.Query)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM bet_groups g %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bet groups: %w", err)
	}

	orderBy := "g.placed_at DESC"
	switch params.Sort {
	case ports.BetSortStake:
		orderBy = "g.stake DESC, g.placed_at DESC"
	case ports.BetSortWinnings:
		orderBy = "g.potential_winnings DESC, g.placed_at DESC"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	dataQuery := fmt.Sprintf(`SELECT g.id, g.user_id, g.stake, g.combined_odds, g.potential_winnings, g.status, g.placed_at, g.settled_at
		FROM bet_groups g %s ORDER BY %s LIMIT $%d OFFSET $%d`, where, orderBy, argIdx, argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bet groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.BetGroup
	var ids []uuid.UUID
	for rows.Next() {
		g := domain.BetGroup{}
		if err := rows.Scan(&g.ID, &g.UserID, &g.Stake, &g.CombinedOdds, &g.PotentialWinnings,
			&g.Status, &g.PlacedAt, &g.SettledAt); err != nil {
			return nil, 0, fmt.Errorf("scan bet group: %w", err)
		}
		groups = append(groups, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bet groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, total, nil
	}

	legQuery := `SELECT id, group_id, user_id, game_id, market_id, market_option_id, label, odds, status, settled_at
		FROM bets WHERE group_id = ANY($1) ORDER BY id`

	legRows, err := r.pool.Query(ctx, legQuery, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("list bet legs: %w", err)
	}
	defer legRows.Close()

	legsByGroup := make(map[uuid.UUID][]domain.Bet, len(groups))
	for legRows.Next() {
		b := domain.Bet{}
		if err := legRows.Scan(&b.ID, &b.GroupID, &b.UserID, &b.GameID, &b.MarketID, &b.MarketOptionID,
			&b.Label, &b.Odds, &b.Status, &b.SettledAt); err != nil {
			return nil, 0, fmt.Errorf("scan bet leg: %w", err)
		}
		legsByGroup[b.GroupID] = append(legsByGroup[b.GroupID], b)
	}
	if err := legRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bet legs: %w", err)
	}

	for i := range groups {
		groups[i].Legs = legsByGroup[groups[i].ID]
	}
	return groups, total, nil
}

// Stats retrieves aggregated betting figures for the admin dashboard.
func (r *BetRepo) Stats(ctx context.Context) (*ports.BetStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'active') AS active,
		COUNT(*) FILTER (WHERE status = 'won') AS won,
		COUNT(*) FILTER (WHERE status = 'lost') AS lost,
		COALESCE(SUM(stake), 0) AS staked,
		COALESCE(SUM(potential_winnings) FILTER (WHERE status = 'won'), 0) AS paid_out
		FROM bet_groups`

	stats := &ports.BetStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalGroups, &stats.ActiveGroups, &stats.WonGroups, &stats.LostGroups,
		&stats.TotalStaked, &stats.TotalPaidOut,
	)
	if err != nil {
		return nil, fmt.Errorf("get bet stats: %w", err)
	}
	return stats, nil
}

// scanGroup is a helper to scan a single row into a BetGroup.
func scanGroup(row pgx.Row) (*domain.BetGroup, error) {
	g := &domain.BetGroup{}
	err := row.Scan(&g.ID, &g.UserID, &g.Stake, &g.CombinedOdds, &g.PotentialWinnings,
		&g.Status, &g.PlacedAt, &g.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bet group: %w", err)
	}
	return g, nil
}
