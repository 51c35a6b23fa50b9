package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/batsonnoah58/betledger/config"
	"github.com/batsonnoah58/betledger/internal/adapter/events"
	"github.com/batsonnoah58/betledger/internal/adapter/gateway"
	httpHandler "github.com/batsonnoah58/betledger/internal/adapter/http/handler"
	pgStorage "github.com/batsonnoah58/betledger/internal/adapter/storage/postgres"
	redisStorage "github.com/batsonnoah58/betledger/internal/adapter/storage/redis"
	"github.com/batsonnoah58/betledger/internal/core/ports"
	"github.com/batsonnoah58/betledger/internal/service"
	"github.com/batsonnoah58/betledger/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("betledger", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting BetLedger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	betRepo := pgStorage.NewBetRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	catalogRepo := pgStorage.NewCatalogRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	confirmCache := redisStorage.NewConfirmCache(rdb)
	oddsCache := redisStorage.NewOddsCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize event publisher
	publisher := newPublisher(cfg.Kafka, log)

	// Initialize gateway clients
	gwHTTP := &http.Client{Timeout: 30 * time.Second}
	mpesaClient := gateway.NewMpesaClient(gateway.MpesaConfig{
		BaseURL:        cfg.Payments.Mpesa.BaseURL,
		ConsumerKey:    cfg.Payments.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Payments.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Payments.Mpesa.ShortCode,
		Passkey:        cfg.Payments.Mpesa.Passkey,
		CallbackURL:    cfg.Payments.Mpesa.CallbackURL,
	}, gwHTTP, log)
	paypalClient := gateway.NewPaypalClient(gateway.PaypalConfig{
		BaseURL:  cfg.Payments.Paypal.BaseURL,
		ClientID: cfg.Payments.Paypal.ClientID,
		Secret:   cfg.Payments.Paypal.Secret,
		Currency: cfg.Payments.Paypal.Currency,
	}, gwHTTP, log)

	// Initialize core services
	ledgerStore := service.NewLedgerStore(ledgerRepo)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	bettingSvc := service.NewBettingService(
		betRepo,
		catalogRepo,
		ledgerStore,
		oddsCache,
		transactor,
		publisher,
		service.BettingConfig{MinStake: cfg.Betting.MinStake, MaxLegs: cfg.Betting.MaxLegs},
		log,
	)
	paymentSvc := service.NewPaymentService(
		paymentRepo,
		ledgerStore,
		confirmCache,
		transactor,
		[]ports.GatewayClient{mpesaClient, paypalClient},
		publisher,
		cfg.Payments.PendingTTL,
		log,
	)
	walletSvc := service.NewWalletService(ledgerRepo, betRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		BettingSvc:     bettingSvc,
		PaymentSvc:     paymentSvc,
		WalletSvc:      walletSvc,
		TokenSvc:       tokenSvc,
		MpesaSigner:    gateway.NewSigner(cfg.Payments.Mpesa.WebhookSecret),
		PaypalSigner:   gateway.NewSigner(cfg.Payments.Paypal.WebhookSecret),
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// Background sweep: fail payments stuck pending past the TTL
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go expirySweep(sweepCtx, paymentSvc, cfg.Payments.SweepInterval, log)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newPublisher wires Kafka if brokers are configured, otherwise events
// are dropped.
func newPublisher(cfg config.KafkaConfig, log zerolog.Logger) ports.EventPublisher {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka brokers not configured, event publishing disabled")
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(
		events.NewWriter(cfg.Brokers, cfg.BetPlacedTopic),
		events.NewWriter(cfg.Brokers, cfg.BetSettledTopic),
		events.NewWriter(cfg.Brokers, cfg.PaymentsTopic),
		log,
	)
}

// expirySweep periodically fails payments that never received a gateway
// confirmation.
func expirySweep(ctx context.Context, paymentSvc ports.PaymentService, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := paymentSvc.ExpirePending(ctx); err != nil {
				log.Error().Err(err).Msg("pending payment sweep failed")
			}
		}
	}
}
