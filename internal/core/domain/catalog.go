package domain

import (
	"time"

	"github.com/google/uuid"
)

// The catalog (games, markets, market options) is owned by an external
// catalog-management subsystem. This service reads it only to validate
// stake reservations against current odds.

// Game is a fixture between two teams.
type Game struct {
	ID        uuid.UUID `json:"id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	League    string    `json:"league"`
	KickoffAt time.Time `json:"kickoff_at"`
	Status    string    `json:"status"` // upcoming, live, finished
}

// MarketOption is one selectable outcome within a market, carrying the
// odds currently offered for it.
type MarketOption struct {
	ID       uuid.UUID `json:"id"`
	MarketID uuid.UUID `json:"market_id"`
	GameID   uuid.UUID `json:"game_id"`
	Label    string    `json:"label"`
	Odds     float64   `json:"odds"`
}
