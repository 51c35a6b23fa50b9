package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepo_GetGame(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCatalogRepo(mock)
	gameID := uuid.New()
	kickoff := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM games WHERE id").
		WithArgs(gameID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "home_team", "away_team", "league", "kickoff_at", "status"}).
			AddRow(gameID, "Arsenal", "Chelsea", "EPL", kickoff, "upcoming"))

	game, err := repo.GetGame(context.Background(), gameID)
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, gameID, game.ID)
	assert.Equal(t, "Arsenal", game.HomeTeam)
	assert.Equal(t, "upcoming", game.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetGame_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCatalogRepo(mock)
	gameID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM games WHERE id").
		WithArgs(gameID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "home_team", "away_team", "league", "kickoff_at", "status"}))

	game, err := repo.GetGame(context.Background(), gameID)
	require.NoError(t, err)
	assert.Nil(t, game)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetMarketOption(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCatalogRepo(mock)
	optionID := uuid.New()
	marketID := uuid.New()
	gameID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM market_options WHERE id").
		WithArgs(optionID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "market_id", "game_id", "label", "odds"}).
			AddRow(optionID, marketID, gameID, "Home win", 1.85))

	option, err := repo.GetMarketOption(context.Background(), optionID)
	require.NoError(t, err)
	require.NotNil(t, option)
	assert.Equal(t, optionID, option.ID)
	assert.Equal(t, marketID, option.MarketID)
	assert.InDelta(t, 1.85, option.Odds, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetMarketOption_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCatalogRepo(mock)
	optionID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM market_options WHERE id").
		WithArgs(optionID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "market_id", "game_id", "label", "odds"}))

	option, err := repo.GetMarketOption(context.Background(), optionID)
	require.NoError(t, err)
	assert.Nil(t, option)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetMarketOption_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCatalogRepo(mock)
	optionID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM market_options WHERE id").
		WithArgs(optionID).
		WillReturnError(errors.New("connection reset"))

	option, err := repo.GetMarketOption(context.Background(), optionID)
	require.Error(t, err)
	assert.Nil(t, option)
	assert.NoError(t, mock.ExpectationsWereMet())
}
