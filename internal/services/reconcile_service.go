package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
	repo "github.com/sellium/payments-backend/internal/repository"
)

// ReconcileService polls transfers stuck in a non-terminal state and
// applies the provider's actual outcome. Needed because a local timeout is
// treated as failure: if the provider's action in fact succeeded after the
// timeout, only this job detects and corrects the drift.
type ReconcileService struct {
	transfers repo.Transfers
	svc       *TransferService
	gateway   provider.Gateway
	cfg       config.Config
}

func NewReconcileService(t repo.Transfers, svc *TransferService, g provider.Gateway, cfg config.Config) *ReconcileService {
	return &ReconcileService{transfers: t, svc: svc, gateway: g, cfg: cfg}
}

// Run blocks until ctx is cancelled, sweeping on the configured interval.
func (s *ReconcileService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Sweep(ctx, now); err != nil {
				slog.Error("reconcile sweep", "err", err)
			}
		}
	}
}

// Sweep resolves every transfer that has sat in pending/otp_required
// longer than the cutoff.
func (s *ReconcileService) Sweep(ctx context.Context, now time.Time) error {
	stale, err := s.transfers.ListStale(ctx,
		[]models.TransferStatus{models.TransferPending, models.TransferOTPRequired},
		now.Add(-s.cfg.ReconcileCutoff),
	)
	if err != nil {
		return err
	}
	metrics.ReconcileSweeps.Inc()

	for _, t := range stale {
		res, err := s.gateway.FetchTransfer(ctx, t.Reference)
		if err != nil {
			slog.Warn("reconcile fetch failed", "transfer", t.Reference, "err", err)
			continue
		}
		switch res.State {
		case provider.TransferStateSuccess:
			if err := s.svc.MarkSuccess(ctx, t); err != nil {
				slog.Error("reconcile mark success", "transfer", t.Reference, "err", err)
			}
		case provider.TransferStateFailed:
			if err := s.svc.MarkFailed(ctx, t, "reconciled: failed at provider"); err != nil {
				slog.Error("reconcile mark failed", "transfer", t.Reference, "err", err)
			}
		default:
			// Still in flight at the provider; leave it for the next sweep.
		}
	}

	// A transfer compensated on a local timeout may still have paid out at
	// the provider. Recent failures get re-checked so that drift is caught
	// and the reversed funds are debited again.
	failed, err := s.transfers.ListFailedSince(ctx, now.Add(-s.cfg.ReconcileRecheck))
	if err != nil {
		return err
	}
	for _, t := range failed {
		res, err := s.gateway.FetchTransfer(ctx, t.Reference)
		if err != nil {
			slog.Warn("reconcile recheck failed", "transfer", t.Reference, "err", err)
			continue
		}
		if res.State != provider.TransferStateSuccess {
			continue
		}
		slog.Warn("failed transfer succeeded at provider", "transfer", t.Reference)
		if err := s.svc.ReinstateSuccess(ctx, t); err != nil {
			slog.Error("reconcile reinstate", "transfer", t.Reference, "err", err)
		}
	}
	return nil
}
