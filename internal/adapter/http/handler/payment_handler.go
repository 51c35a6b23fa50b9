package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/batsonnoah58/betledger/internal/adapter/http/dto"
	"github.com/batsonnoah58/betledger/internal/adapter/http/middleware"
	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/pkg/apperror"
	"github.com/batsonnoah58/betledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles deposit/withdrawal initiation and the gateway
// callback endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Deposit handles POST /api/v1/payments/deposits.
func (h *PaymentHandler) Deposit(c *gin.Context) {
	h.initiate(c, h.paymentSvc.InitiateDeposit)
}

// Withdraw handles POST /api/v1/payments/withdrawals.
func (h *PaymentHandler) Withdraw(c *gin.Context) {
	h.initiate(c, h.paymentSvc.InitiateWithdrawal)
}

func (h *PaymentHandler) initiate(
	c *gin.Context,
	fn func(ctx context.Context, req ports.InitiatePaymentRequest) (*domain.PendingPayment, error),
) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payment, err := fn(c.Request.Context(), ports.InitiatePaymentRequest{
		UserID:  userID,
		Gateway: domain.Gateway(req.Gateway),
		Amount:  req.Amount,
		Phone:   req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPendingPaymentResponse(payment))
}

// ListPayments handles GET /api/v1/payments.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	payments, err := h.paymentSvc.ListPayments(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PendingPaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, toPendingPaymentResponse(&payments[i]))
	}

	response.OK(c, dto.PaymentListResponse{Items: items})
}

// MpesaCallback handles POST /api/v1/payments/mpesa/callback. Daraja
// expects a ResultCode acknowledgement; anything else triggers redelivery,
// which ConfirmGateway absorbs idempotently.
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	var cb dto.MpesaCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	_, err := h.paymentSvc.ConfirmGateway(c.Request.Context(), ports.GatewayConfirmation{
		Gateway:    domain.GatewayMpesa,
		GatewayRef: cb.Body.StkCallback.CheckoutRequestID,
		Succeeded:  cb.Body.StkCallback.ResultCode == 0,
		Amount:     cb.Amount(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// PaypalWebhook handles POST /api/v1/payments/paypal/callback.
func (h *PaymentHandler) PaypalWebhook(c *gin.Context) {
	var evt dto.PaypalWebhook
	if err := c.ShouldBindJSON(&evt); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount := int64(0)
	if evt.Resource.Amount.Value != "" {
		v, err := dto.ParseMoney(evt.Resource.Amount.Value)
		if err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		amount = v
	}

	payment, err := h.paymentSvc.ConfirmGateway(c.Request.Context(), ports.GatewayConfirmation{
		Gateway:    domain.GatewayPaypal,
		GatewayRef: evt.Resource.ID,
		Succeeded:  paypalEventSucceeded(evt.EventType),
		Amount:     amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPendingPaymentResponse(payment))
}

// paypalEventSucceeded maps PayPal event types to a confirmation outcome.
func paypalEventSucceeded(eventType string) bool {
	switch eventType {
	case "CHECKOUT.ORDER.APPROVED", "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.PAYOUTS-ITEM.SUCCEEDED":
		return true
	default:
		return false
	}
}

// toPendingPaymentResponse converts a domain.PendingPayment to its DTO.
func toPendingPaymentResponse(p *domain.PendingPayment) dto.PendingPaymentResponse {
	resp := dto.PendingPaymentResponse{
		ID:         p.ID.String(),
		Gateway:    string(p.Gateway),
		GatewayRef: p.GatewayRef,
		Amount:     p.Amount,
		Direction:  string(p.Direction),
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.ResolvedAt != nil {
		s := p.ResolvedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ResolvedAt = &s
	}
	return resp
}
