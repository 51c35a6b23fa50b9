package handler

import (
	"math"
	"strconv"

	"github.com/batsonnoah58/betledger/internal/adapter/http/dto"
	"github.com/batsonnoah58/betledger/internal/adapter/http/middleware"
	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/pkg/apperror"
	"github.com/batsonnoah58/betledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BetHandler handles bet placement and listing endpoints.
type BetHandler struct {
	bettingSvc ports.BettingService
}

// NewBetHandler creates a new BetHandler.
func NewBetHandler(bettingSvc ports.BettingService) *BetHandler {
	return &BetHandler{bettingSvc: bettingSvc}
}

// PlaceBet handles POST /api/v1/bets.
func (h *BetHandler) PlaceBet(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	legs := make([]ports.ReserveLeg, 0, len(req.Legs))
	for i := range req.Legs {
		leg, err := toReserveLeg(&req.Legs[i])
		if err != nil {
			response.Error(c, err)
			return
		}
		legs = append(legs, leg)
	}

	group, err := h.bettingSvc.Reserve(c.Request.Context(), ports.ReserveRequest{
		UserID: userID,
		Stake:  req.Stake,
		Legs:   legs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toBetGroupResponse(group))
}

// ListBets handles GET /api/v1/bets.
func (h *BetHandler) ListBets(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.BetListParams{
		UserID:   userID,
		Query:    c.Query("q"),
		Sort:     ports.BetSort(c.DefaultQuery("sort", string(ports.BetSortRecent))),
		Page:     page,
		PageSize: pageSize,
	}

	switch c.Query("status") {
	case "active":
		settled := false
		params.Settled = &settled
	case "settled":
		settled := true
		params.Settled = &settled
	}

	groups, total, err := h.bettingSvc.ListBets(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BetGroupResponse, 0, len(groups))
	for i := range groups {
		items = append(items, toBetGroupResponse(&groups[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.BetListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// toReserveLeg parses a leg DTO's id fields.
func toReserveLeg(leg *dto.PlaceBetLeg) (ports.ReserveLeg, error) {
	gameID, err := uuid.Parse(leg.GameID)
	if err != nil {
		return ports.ReserveLeg{}, apperror.Validation("invalid game_id")
	}
	out := ports.ReserveLeg{
		GameID: gameID,
		Odds:   leg.Odds,
		Label:  leg.Label,
	}
	if leg.MarketID != nil {
		id, err := uuid.Parse(*leg.MarketID)
		if err != nil {
			return ports.ReserveLeg{}, apperror.Validation("invalid market_id")
		}
		out.MarketID = &id
	}
	if leg.MarketOptionID != nil {
		id, err := uuid.Parse(*leg.MarketOptionID)
		if err != nil {
			return ports.ReserveLeg{}, apperror.Validation("invalid market_option_id")
		}
		out.MarketOptionID = &id
	}
	return out, nil
}

// toBetGroupResponse converts a domain.BetGroup to its DTO.
func toBetGroupResponse(g *domain.BetGroup) dto.BetGroupResponse {
	resp := dto.BetGroupResponse{
		ID:                g.ID.String(),
		Stake:             g.Stake,
		CombinedOdds:      g.CombinedOdds,
		PotentialWinnings: g.PotentialWinnings,
		Status:            string(g.Status),
		PlacedAt:          g.PlacedAt.Format("2006-01-02T15:04:05Z07:00"),
		Legs:              make([]dto.BetResponse, 0, len(g.Legs)),
	}
	if g.SettledAt != nil {
		s := g.SettledAt.Format("2006-01-02T15:04:05Z07:00")
		resp.SettledAt = &s
	}
	for i := range g.Legs {
		resp.Legs = append(resp.Legs, toBetResponse(&g.Legs[i]))
	}
	return resp
}

func toBetResponse(b *domain.Bet) dto.BetResponse {
	resp := dto.BetResponse{
		ID:     b.ID.String(),
		GameID: b.GameID.String(),
		Label:  b.Label,
		Odds:   b.Odds,
		Status: string(b.Status),
	}
	if b.MarketID != nil {
		s := b.MarketID.String()
		resp.MarketID = &s
	}
	if b.MarketOptionID != nil {
		s := b.MarketOptionID.String()
		resp.MarketOptionID = &s
	}
	if b.SettledAt != nil {
		s := b.SettledAt.Format("2006-01-02T15:04:05Z07:00")
		resp.SettledAt = &s
	}
	return resp
}
