package domain

import (
	"time"

	"github.com/google/uuid"
)

// BetStatus is the lifecycle state of a bet leg or group.
// Transitions are active -> won or active -> lost, exactly once, never reversed.
type BetStatus string

const (
	BetStatusActive BetStatus = "active"
	BetStatusWon    BetStatus = "won"
	BetStatusLost   BetStatus = "lost"
)

// Outcome is the settlement result an admin assigns to a leg.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// Valid reports whether o is a recognized outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeWon || o == OutcomeLost
}

// Bet is one leg of a wager. Single bets are one-leg groups.
type Bet struct {
	ID             uuid.UUID  `json:"id"`
	GroupID        uuid.UUID  `json:"group_id"`
	UserID         uuid.UUID  `json:"user_id"`
	GameID         uuid.UUID  `json:"game_id"`
	MarketID       *uuid.UUID `json:"market_id,omitempty"`
	MarketOptionID *uuid.UUID `json:"market_option_id,omitempty"`
	Label          string     `json:"label"` // e.g. "Arsenal to win"
	Odds           float64    `json:"odds"`  // Decimal odds, >= 1.0
	Status         BetStatus  `json:"status"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

// BetGroup is the atomic unit of a wager: a set of legs placed together
// with one stake and one combined-odds value. The stake is debited once
// when the group is placed and the payout credited once if it resolves won.
type BetGroup struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Stake             int64      `json:"stake"`         // In cents
	CombinedOdds      float64    `json:"combined_odds"` // Product of leg odds
	PotentialWinnings int64      `json:"potential_winnings"`
	Status            BetStatus  `json:"status"`
	PlacedAt          time.Time  `json:"placed_at"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
	Legs              []Bet      `json:"legs,omitempty"`
}

// IsSettled reports whether the group has reached a terminal status.
func (g *BetGroup) IsSettled() bool {
	return g.Status == BetStatusWon || g.Status == BetStatusLost
}

// ComputeWinnings derives the payout in cents for a stake and combined
// odds, truncating toward zero.
func ComputeWinnings(stake int64, combinedOdds float64) int64 {
	return int64(float64(stake) * combinedOdds)
}
