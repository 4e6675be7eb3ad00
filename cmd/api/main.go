package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sellium/payments-backend/internal/api"
	"github.com/sellium/payments-backend/internal/auth"
	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/db"
	"github.com/sellium/payments-backend/internal/logger"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/middleware"
	"github.com/sellium/payments-backend/internal/provider"
	"github.com/sellium/payments-backend/internal/provider/paystack"
	"github.com/sellium/payments-backend/internal/repository/postgres"
	"github.com/sellium/payments-backend/internal/services"
	"github.com/sellium/payments-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	var gateway provider.Gateway
	switch cfg.Provider {
	case "paystack":
		gateway = paystack.New(cfg.ProviderBaseURL, cfg.ProviderSecret, cfg.ProviderTimeout)
	default:
		log.Error("unknown payment provider", "provider", cfg.Provider)
		os.Exit(1)
	}

	ledgerSvc := services.NewLedgerService(repos.Ledger, repos.Wallets, repos.AuditLogs, repos.Tx, cfg)
	walletSvc := services.NewWalletService(repos.Wallets, repos.BankAccounts, gateway, cfg)
	transferSvc := services.NewTransferService(repos.Transfers, repos.BankAccounts, repos.AuditLogs, ledgerSvc, gateway, cfg)
	settleSvc := services.NewSettlementService(repos.Settlements, transferSvc, cfg)
	refundSvc := services.NewRefundService(repos.Refunds, repos.Orders, repos.Inventory, repos.Tx, ledgerSvc, gateway, cfg)
	webhookSvc := services.NewWebhookService(repos.Orders, repos.Wallets, ledgerSvc, transferSvc, refundSvc, settleSvc, gateway, wp, cfg)
	reconcileSvc := services.NewReconcileService(repos.Transfers, transferSvc, gateway, cfg)

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTSecret, cfg.JWTIssuer, 15*time.Minute, 7*24*time.Hour)
	authMw := middleware.NewAuthMiddleware(tm, cfg.Env)

	metrics.Init()

	go reconcileSvc.Run(ctx)
	go runSettlements(ctx, settleSvc, log)

	r := api.NewRouter(api.RouterDeps{
		Cfg:       cfg,
		Auth:      authMw,
		Ledger:    ledgerSvc,
		Wallets:   walletSvc,
		Transfers: transferSvc,
		Refunds:   refundSvc,
		Settle:    settleSvc,
		Webhooks:  webhookSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "provider", cfg.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runSettlements releases due settlements on the hour. The admin endpoint
// can trigger an extra run at any time; RunDue is safe to call concurrently
// because releases are keyed by settlement status transitions.
func runSettlements(ctx context.Context, svc *services.SettlementService, log *slog.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := svc.RunDue(ctx, now); err != nil {
				log.Error("settlement run", "err", err)
			}
		}
	}
}
