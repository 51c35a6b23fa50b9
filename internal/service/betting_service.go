package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/internal/metrics"
	"github.com/batsonnoah58/betledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const oddsCacheTTL = 30 * time.Second

// oddsTolerance absorbs float rounding between the cached and stored odds.
const oddsTolerance = 1e-9

// maxCombinedOdds bounds the product of leg odds. Keeps the payout
// inside int64 cents and the odds inside the NUMERIC(12,4) column.
const maxCombinedOdds = 10000.0

// BettingConfig holds the stake policy knobs.
type BettingConfig struct {
	MinStake int64 // In cents
	MaxLegs  int
}

// BettingServiceImpl implements ports.BettingService.
type BettingServiceImpl struct {
	betRepo     ports.BetRepository
	catalogRepo ports.CatalogRepository
	ledger      *LedgerStore
	oddsCache   ports.OddsCache
	transactor  ports.DBTransactor
	publisher   ports.EventPublisher
	cfg         BettingConfig
	log         zerolog.Logger
}

// NewBettingService creates a new BettingServiceImpl.
func NewBettingService(
	betRepo ports.BetRepository,
	catalogRepo ports.CatalogRepository,
	ledger *LedgerStore,
	oddsCache ports.OddsCache,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	cfg BettingConfig,
	log zerolog.Logger,
) *BettingServiceImpl {
	return &BettingServiceImpl{
		betRepo:     betRepo,
		catalogRepo: catalogRepo,
		ledger:      ledger,
		oddsCache:   oddsCache,
		transactor:  transactor,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// Reserve debits the stake and records the bet group atomically. The
// wallet lock inside LedgerStore.Append serializes concurrent
// reservations, so the balance can never go negative.
func (s *BettingServiceImpl) Reserve(ctx context.Context, req ports.ReserveRequest) (*domain.BetGroup, error) {
	if req.Stake < s.cfg.MinStake {
		return nil, apperror.ErrInvalidStake(s.cfg.MinStake)
	}
	if len(req.Legs) == 0 {
		return nil, apperror.ErrNoLegs()
	}
	if s.cfg.MaxLegs > 0 && len(req.Legs) > s.cfg.MaxLegs {
		return nil, apperror.ErrTooManyLegs(s.cfg.MaxLegs)
	}

	combinedOdds := 1.0
	for i := range req.Legs {
		leg := &req.Legs[i]
		if leg.Odds < 1.0 || math.IsNaN(leg.Odds) || math.IsInf(leg.Odds, 0) {
			return nil, apperror.ErrInvalidOdds()
		}
		combinedOdds *= leg.Odds
	}
	// Beyond this cap the winnings arithmetic and the NUMERIC odds
	// column stop being meaningful, so the product is a validation
	// failure, not a payout. Checked before the catalog round-trips.
	if combinedOdds > maxCombinedOdds {
		return nil, apperror.ErrOddsTooHigh(maxCombinedOdds)
	}
	for i := range req.Legs {
		if err := s.validateLeg(ctx, &req.Legs[i]); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	groupID := uuid.New()
	group := &domain.BetGroup{
		ID:                groupID,
		UserID:            req.UserID,
		Stake:             req.Stake,
		CombinedOdds:      combinedOdds,
		PotentialWinnings: domain.ComputeWinnings(req.Stake, combinedOdds),
		Status:            domain.BetStatusActive,
		PlacedAt:          now,
	}
	for _, leg := range req.Legs {
		group.Legs = append(group.Legs, domain.Bet{
			ID:             uuid.New(),
			GroupID:        groupID,
			UserID:         req.UserID,
			GameID:         leg.GameID,
			MarketID:       leg.MarketID,
			MarketOptionID: leg.MarketOptionID,
			Label:          leg.Label,
			Odds:           leg.Odds,
			Status:         domain.BetStatusActive,
		})
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.ledger.Append(ctx, dbTx, req.UserID, domain.EntryKindBetPlaced, -req.Stake, &groupID, nil); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "WAL_001" {
			metrics.InsufficientFunds.Inc()
		}
		return nil, err
	}
	if err := s.betRepo.CreateGroup(ctx, dbTx, group); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create bet group: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	metrics.BetsPlaced.Inc()
	if err := s.publisher.BetPlaced(ctx, ports.BetPlacedEvent{
		GroupID:      groupID,
		UserID:       req.UserID,
		Stake:        req.Stake,
		CombinedOdds: combinedOdds,
		Legs:         len(group.Legs),
	}); err != nil {
		s.log.Warn().Err(err).Str("group_id", groupID.String()).Msg("bet placed event publish failed")
	}

	s.log.Info().
		Str("group_id", groupID.String()).
		Str("user_id", req.UserID.String()).
		Int64("stake", req.Stake).
		Float64("combined_odds", combinedOdds).
		Int("legs", len(group.Legs)).
		Msg("Stake reserved")

	return group, nil
}

// validateLeg checks the selection against the catalog. Odds go through
// the Redis cache first so a burst of reservations on the same option
// reads Postgres once.
func (s *BettingServiceImpl) validateLeg(ctx context.Context, leg *ports.ReserveLeg) error {
	if leg.MarketOptionID == nil {
		game, err := s.catalogRepo.GetGame(ctx, leg.GameID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get game: %w", err))
		}
		if game == nil {
			return apperror.ErrUnknownSelection()
		}
		return nil
	}

	cached, ok, err := s.oddsCache.Get(ctx, *leg.MarketOptionID)
	if err != nil {
		s.log.Warn().Err(err).Msg("odds cache read failed, falling through to catalog")
		ok = false
	}
	if ok {
		if math.Abs(cached-leg.Odds) > oddsTolerance {
			return apperror.ErrOddsChanged()
		}
		return nil
	}

	option, err := s.catalogRepo.GetMarketOption(ctx, *leg.MarketOptionID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get market option: %w", err))
	}
	if option == nil {
		return apperror.ErrUnknownSelection()
	}
	if err := s.oddsCache.Set(ctx, option.ID, option.Odds, oddsCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("odds cache write failed")
	}
	if math.Abs(option.Odds-leg.Odds) > oddsTolerance {
		return apperror.ErrOddsChanged()
	}
	return nil
}

// Settle resolves one leg. The group row lock serializes settlements in
// the same group; the leg and group transitions are check-and-set, so a
// winning payout is credited exactly once.
func (s *BettingServiceImpl) Settle(ctx context.Context, req ports.SettleRequest) (*domain.BetGroup, error) {
	if !req.Outcome.Valid() {
		return nil, apperror.Validation("outcome must be won or lost")
	}

	leg, err := s.betRepo.GetLeg(ctx, req.LegID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get bet leg: %w", err))
	}
	if leg == nil {
		return nil, apperror.ErrNotFound("bet")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	group, err := s.betRepo.GetGroupForUpdate(ctx, dbTx, leg.GroupID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock bet group: %w", err))
	}
	if group == nil {
		return nil, apperror.ErrNotFound("bet group")
	}

	now := time.Now().UTC()
	legStatus := domain.BetStatusLost
	if req.Outcome == domain.OutcomeWon {
		legStatus = domain.BetStatusWon
	}

	ok, err := s.betRepo.SettleLeg(ctx, dbTx, req.LegID, legStatus, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("settle bet leg: %w", err))
	}
	if !ok {
		return nil, apperror.ErrAlreadySettled()
	}

	legs, err := s.betRepo.LegsByGroup(ctx, dbTx, group.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list bet legs: %w", err))
	}

	groupStatus, payout, err := s.resolveGroup(ctx, dbTx, group, legs, req.Outcome, now)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	metrics.BetsSettled.WithLabelValues(string(groupStatus)).Inc()
	if err := s.publisher.BetSettled(ctx, ports.BetSettledEvent{
		GroupID:     group.ID,
		LegID:       req.LegID,
		UserID:      group.UserID,
		Outcome:     string(req.Outcome),
		GroupStatus: string(groupStatus),
		Payout:      payout,
	}); err != nil {
		s.log.Warn().Err(err).Str("group_id", group.ID.String()).Msg("bet settled event publish failed")
	}

	s.log.Info().
		Str("group_id", group.ID.String()).
		Str("leg_id", req.LegID.String()).
		Str("outcome", string(req.Outcome)).
		Str("group_status", string(groupStatus)).
		Int64("payout", payout).
		Msg("Bet leg settled")

	updated, err := s.betRepo.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get bet group: %w", err))
	}
	return updated, nil
}

// resolveGroup applies the group transition implied by the freshly
// settled legs. A lost leg resolves the group lost immediately; the
// group resolves won only when every leg has won, and the payout is
// credited inside the same transaction as the transition.
func (s *BettingServiceImpl) resolveGroup(ctx context.Context, dbTx pgx.Tx, group *domain.BetGroup, legs []domain.Bet, outcome domain.Outcome, now time.Time) (domain.BetStatus, int64, error) {
	if outcome == domain.OutcomeLost {
		if group.Status != domain.BetStatusActive {
			return group.Status, 0, nil
		}
		ok, err := s.betRepo.SettleGroup(ctx, dbTx, group.ID, domain.BetStatusLost, now)
		if err != nil {
			return "", 0, apperror.InternalError(fmt.Errorf("settle bet group: %w", err))
		}
		if !ok {
			return group.Status, 0, nil
		}
		return domain.BetStatusLost, 0, nil
	}

	for _, l := range legs {
		if l.Status != domain.BetStatusWon {
			return group.Status, 0, nil
		}
	}
	if group.Status != domain.BetStatusActive {
		return group.Status, 0, nil
	}

	ok, err := s.betRepo.SettleGroup(ctx, dbTx, group.ID, domain.BetStatusWon, now)
	if err != nil {
		return "", 0, apperror.InternalError(fmt.Errorf("settle bet group: %w", err))
	}
	if !ok {
		return group.Status, 0, nil
	}
	if _, err := s.ledger.Append(ctx, dbTx, group.UserID, domain.EntryKindBetWon, group.PotentialWinnings, &group.ID, nil); err != nil {
		return "", 0, err
	}
	return domain.BetStatusWon, group.PotentialWinnings, nil
}

// ListBets lists a user's bet groups.
func (s *BettingServiceImpl) ListBets(ctx context.Context, params ports.BetListParams) ([]domain.BetGroup, int64, error) {
	groups, total, err := s.betRepo.ListByUser(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list bets: %w", err))
	}
	return groups, total, nil
}
