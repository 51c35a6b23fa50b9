package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/batsonnoah58/betledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CatalogRepo implements ports.CatalogRepository. The catalog tables are
// owned and written by the catalog-management subsystem; this repo only
// reads them to validate reservations.
type CatalogRepo struct {
	pool Pool
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(pool Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// GetGame fetches a game by id.
func (r *CatalogRepo) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	query := `SELECT id, home_team, away_team, league, kickoff_at, status FROM games WHERE id = $1`

	g := &domain.Game{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.HomeTeam, &g.AwayTeam, &g.League, &g.KickoffAt, &g.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

// GetMarketOption fetches a market option with its current odds.
func (r *CatalogRepo) GetMarketOption(ctx context.Context, id uuid.UUID) (*domain.MarketOption, error) {
	query := `SELECT id, market_id, game_id, label, odds FROM market_options WHERE id = $1`

	o := &domain.MarketOption{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&o.ID, &o.MarketID, &o.GameID, &o.Label, &o.Odds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get market option: %w", err)
	}
	return o, nil
}
