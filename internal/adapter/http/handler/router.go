package handler

import (
	"github.com/batsonnoah58/betledger/internal/adapter/gateway"
	"github.com/batsonnoah58/betledger/internal/adapter/http/middleware"
	redisStore "github.com/batsonnoah58/betledger/internal/adapter/storage/redis"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	BettingSvc     ports.BettingService
	PaymentSvc     ports.PaymentService
	WalletSvc      ports.WalletService
	TokenSvc       ports.TokenService
	MpesaSigner    *gateway.Signer
	PaypalSigner   *gateway.Signer
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)

	// --- Gateway callbacks (signature-verified, no user auth) ---
	callbacks := v1.Group("/payments")
	{
		callbacks.POST("/mpesa/callback", rl("webhooks"),
			middleware.WebhookSignature(deps.MpesaSigner, deps.Logger), paymentHandler.MpesaCallback)
		callbacks.POST("/paypal/callback", rl("webhooks"),
			middleware.WebhookSignature(deps.PaypalSigner, deps.Logger), paymentHandler.PaypalWebhook)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	betHandler := NewBetHandler(deps.BettingSvc)
	bets := v1.Group("/bets", jwtAuth)
	{
		bets.POST("", rl("bets"), betHandler.PlaceBet)
		bets.GET("", rl("wallet"), betHandler.ListBets)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("wallet"), walletHandler.GetBalance)
		wallet.GET("/history", rl("wallet"), walletHandler.GetHistory)
	}

	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("/deposits", rl("payments"), paymentHandler.Deposit)
		payments.POST("/withdrawals", rl("payments"), paymentHandler.Withdraw)
		payments.GET("", rl("wallet"), paymentHandler.ListPayments)
	}

	// --- Admin surface (JWT + admin role) ---
	adminHandler := NewAdminHandler(deps.BettingSvc, deps.WalletSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireAdmin())
	{
		admin.POST("/settlements", rl("admin"), adminHandler.Settle)
		admin.GET("/stats", rl("admin"), adminHandler.GetStats)
	}

	return r
}
