package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
	repo "github.com/sellium/payments-backend/internal/repository"
)

// RefundService validates refund eligibility, splits the amount between
// the platform and the merchant, calls the processor, and persists all
// local effects in one transaction. No partial refund state ever survives
// a failure.
type RefundService struct {
	refunds   repo.Refunds
	orders    repo.Orders
	inventory repo.Inventory
	tx        repo.Tx
	ledger    *LedgerService
	gateway   provider.Gateway
	cfg       config.Config
}

func NewRefundService(r repo.Refunds, o repo.Orders, inv repo.Inventory, tx repo.Tx, l *LedgerService, g provider.Gateway, cfg config.Config) *RefundService {
	return &RefundService{refunds: r, orders: o, inventory: inv, tx: tx, ledger: l, gateway: g, cfg: cfg}
}

type RefundRequest struct {
	OrderID string
	Kind    models.RefundKind
	Amount  int64 // required for partial, ignored for full
	Reason  string
}

func (s *RefundService) ProcessRefund(ctx context.Context, req RefundRequest) (models.OrderRefund, error) {
	order, err := s.orders.GetWithItems(ctx, req.OrderID)
	if err != nil {
		return models.OrderRefund{}, fmt.Errorf("order: %w", err)
	}

	totalRefund, err := s.eligibleAmount(ctx, order, req)
	if err != nil {
		return models.OrderRefund{}, err
	}
	platformShare := decimal.NewFromInt(totalRefund).
		Mul(s.cfg.PlatformFeeRate).
		Round(0).
		IntPart()
	merchantShare := totalRefund - platformShare

	if order.PaymentRef == nil {
		return models.OrderRefund{}, errs.Validation("order %s has no provider payment reference", order.ID)
	}

	// Customer-facing refund first; nothing local is written until the
	// processor accepts it.
	provRes, err := s.gateway.Refund(ctx, provider.RefundRequest{
		TransactionRef: *order.PaymentRef,
		Amount:         totalRefund,
		Reason:         req.Reason,
	})
	if err != nil {
		metrics.RefundsTotal.WithLabelValues("failed").Inc()
		return models.OrderRefund{}, err
	}

	var refund models.OrderRefund
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		platformRef := "RFD-P-" + provRes.RefundRef
		merchantRef := "RFD-M-" + provRes.RefundRef

		if _, err := s.ledger.RecordInTx(ctx, tx, RecordParams{
			OwnerID:     s.cfg.PlatformWalletID,
			OrderID:     &order.ID,
			Kind:        models.KindRefund,
			Flow:        models.FlowDebit,
			Amount:      platformShare,
			Reference:   platformRef,
			ProviderRef: &provRes.RefundRef,
		}); err != nil {
			return fmt.Errorf("platform debit: %w", err)
		}
		if _, err := s.ledger.RecordInTx(ctx, tx, RecordParams{
			OwnerID:     order.MerchantID,
			OrderID:     &order.ID,
			Kind:        models.KindRefund,
			Flow:        models.FlowDebit,
			Amount:      merchantShare,
			Reference:   merchantRef,
			ProviderRef: &provRes.RefundRef,
		}); err != nil {
			return fmt.Errorf("merchant debit: %w", err)
		}

		refund, err = s.refunds.Insert(ctx, tx, models.OrderRefund{
			OrderID:         order.ID,
			Kind:            req.Kind,
			AmountRequested: totalRefund,
			AmountApproved:  totalRefund,
			AmountRefunded:  totalRefund,
			PlatformShare:   platformShare,
			MerchantShare:   merchantShare,
			Reason:          req.Reason,
			ProviderRef:     &provRes.RefundRef,
			PlatformLedger:  platformRef,
			MerchantLedger:  merchantRef,
			Status:          models.RefundCompleted,
		})
		if err != nil {
			return err
		}

		if req.Kind == models.RefundFull {
			return s.orders.SetStatusTx(ctx, tx, order.ID, models.OrderRefunded, models.PaymentRefundedFull)
		}
		return nil
	})
	if err != nil {
		metrics.RefundsTotal.WithLabelValues("failed").Inc()
		return models.OrderRefund{}, err
	}

	// Restock is best-effort: failures are logged, never surfaced, and
	// never unwind the committed refund.
	if req.Kind == models.RefundFull {
		for _, item := range order.Items {
			if err := s.inventory.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				slog.Warn("restock failed", "order", order.ID, "product", item.ProductID, "err", err)
			}
		}
	}

	metrics.RefundsTotal.WithLabelValues("completed").Inc()
	return refund, nil
}

// eligibleAmount enforces the refundability rules: the order must be paid,
// not already fully refunded, and a partial amount cannot exceed what is
// still refundable.
func (s *RefundService) eligibleAmount(ctx context.Context, order models.Order, req RefundRequest) (int64, error) {
	if order.PaymentStatus != models.PaymentPaid {
		return 0, errs.Validation("order %s is not paid", order.ID)
	}

	existing, err := s.refunds.ListByOrder(ctx, order.ID)
	if err != nil {
		return 0, err
	}
	var refunded int64
	for _, r := range existing {
		if r.Status == models.RefundCompleted {
			refunded += r.AmountRefunded
		}
	}
	remaining := order.Total - refunded
	if remaining <= 0 {
		return 0, errs.Validation("order %s is already fully refunded", order.ID)
	}

	switch req.Kind {
	case models.RefundFull:
		if refunded > 0 {
			return 0, errs.Validation("order %s has partial refunds; a full refund would exceed the order total", order.ID)
		}
		return order.Total, nil
	case models.RefundPartial:
		if req.Amount <= 0 {
			return 0, errs.Validation("partial refund amount must be > 0")
		}
		if req.Amount > remaining {
			return 0, errs.Validation("refund amount %d exceeds refundable balance %d", req.Amount, remaining)
		}
		return req.Amount, nil
	default:
		return 0, errs.Validation("unknown refund kind %q", req.Kind)
	}
}

// ConfirmProcessed applies the processor's asynchronous confirmation.
func (s *RefundService) ConfirmProcessed(ctx context.Context, providerRef string) error {
	refund, err := s.refunds.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return err
	}
	if refund.Status == models.RefundCompleted {
		return nil
	}
	return s.refunds.SetStatus(ctx, refund.ID, models.RefundCompleted)
}

// ConfirmFailed reacts to a processor-side refund failure by reversing the
// two local debits and marking the refund failed.
func (s *RefundService) ConfirmFailed(ctx context.Context, providerRef string) error {
	refund, err := s.refunds.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return err
	}
	if refund.Status == models.RefundFailed {
		return nil
	}
	// Both reversals and the status flip commit together so a crash cannot
	// leave one wallet compensated and the other not.
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		for _, ref := range []string{refund.PlatformLedger, refund.MerchantLedger} {
			entry, err := s.ledger.GetByReference(ctx, ref)
			if err != nil {
				return err
			}
			if entry.Status == models.EntrySuccess {
				if _, err := s.ledger.ReverseInTx(ctx, tx, entry); err != nil {
					return err
				}
			}
		}
		return s.refunds.SetStatusTx(ctx, tx, refund.ID, models.RefundFailed)
	})
	if err != nil {
		return err
	}
	metrics.RefundsTotal.WithLabelValues("failed").Inc()
	return nil
}
