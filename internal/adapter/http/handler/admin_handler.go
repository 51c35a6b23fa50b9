package handler

import (
	"net/http"

	"github.com/batsonnoah58/betledger/internal/adapter/http/dto"
	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/pkg/apperror"
	"github.com/batsonnoah58/betledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the settlement and reporting endpoints.
type AdminHandler struct {
	bettingSvc ports.BettingService
	walletSvc  ports.WalletService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bettingSvc ports.BettingService, walletSvc ports.WalletService) *AdminHandler {
	return &AdminHandler{bettingSvc: bettingSvc, walletSvc: walletSvc}
}

// Settle handles POST /api/v1/admin/settlements.
func (h *AdminHandler) Settle(c *gin.Context) {
	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	legID, err := uuid.Parse(req.LegID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid leg_id"))
		return
	}

	group, err := h.bettingSvc.Settle(c.Request.Context(), ports.SettleRequest{
		LegID:   legID,
		Outcome: domain.Outcome(req.Outcome),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBetGroupResponse(group))
}

// GetStats handles GET /api/v1/admin/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.walletSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatsResponse{
		TotalGroups:  stats.TotalGroups,
		ActiveGroups: stats.ActiveGroups,
		WonGroups:    stats.WonGroups,
		LostGroups:   stats.LostGroups,
		TotalStaked:  stats.TotalStaked,
		TotalPaidOut: stats.TotalPaidOut,
	})
}

// HealthCheck handles GET /health, verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
