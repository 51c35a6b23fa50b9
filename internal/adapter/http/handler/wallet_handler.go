package handler

import (
	"strconv"

	"github.com/batsonnoah58/betledger/internal/adapter/http/dto"
	"github.com/batsonnoah58/betledger/internal/adapter/http/middleware"
	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/pkg/apperror"
	"github.com/batsonnoah58/betledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles balance and ledger history endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.walletSvc.Balance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{Balance: balance})
}

// GetHistory handles GET /api/v1/wallet/history.
func (h *WalletHandler) GetHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	params := ports.LedgerHistoryParams{
		UserID: userID,
		Limit:  limit,
		Cursor: c.Query("cursor"),
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.EntryKind(k)
		params.Kind = &kind
	}

	entries, next, err := h.walletSvc.History(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerEntryResponse(&entries[i]))
	}

	response.OK(c, dto.LedgerHistoryResponse{
		Items:      items,
		NextCursor: next,
	})
}

// toLedgerEntryResponse converts a domain.LedgerEntry to its DTO.
func toLedgerEntryResponse(e *domain.LedgerEntry) dto.LedgerEntryResponse {
	resp := dto.LedgerEntryResponse{
		ID:          e.ID.String(),
		Kind:        string(e.Kind),
		Amount:      e.Amount,
		ExternalRef: e.ExternalRef,
		CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if e.RelatedBetID != nil {
		s := e.RelatedBetID.String()
		resp.RelatedBetID = &s
	}
	return resp
}
