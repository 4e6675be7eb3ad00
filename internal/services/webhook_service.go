package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
	repo "github.com/sellium/payments-backend/internal/repository"
	"github.com/sellium/payments-backend/internal/worker"
)

// WebhookService consumes the processor's asynchronous callbacks. Delivery
// is at-least-once and out of order, so every handler checks the current
// terminal state before mutating anything.
type WebhookService struct {
	orders      repo.Orders
	wallets     repo.Wallets
	ledger      *LedgerService
	transfers   *TransferService
	refunds     *RefundService
	settlements *SettlementService
	gateway     provider.Gateway
	wp          *worker.Pool
	cfg         config.Config
}

func NewWebhookService(
	o repo.Orders,
	w repo.Wallets,
	l *LedgerService,
	t *TransferService,
	r *RefundService,
	s *SettlementService,
	g provider.Gateway,
	wp *worker.Pool,
	cfg config.Config,
) *WebhookService {
	return &WebhookService{
		orders: o, wallets: w, ledger: l, transfers: t, refunds: r,
		settlements: s, gateway: g, wp: wp, cfg: cfg,
	}
}

type eventEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Accept authenticates and enqueues a webhook delivery. The caller acks
// the processor as soon as Accept returns nil; handler failures are logged
// internally and never surfaced, to avoid delivery storms.
func (s *WebhookService) Accept(ctx context.Context, raw []byte, signature string) error {
	if err := s.gateway.ValidateSignature(signature, raw); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		return errs.ErrSignature
	}
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		return errs.Validation("malformed event payload")
	}

	s.wp.Submit(func() {
		// The request context dies with the ack; handlers get their own.
		if err := s.dispatch(context.Background(), env); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues(env.Event, "error").Inc()
			slog.Error("webhook handler failed", "event", env.Event, "err", err)
			return
		}
		metrics.WebhookEventsTotal.WithLabelValues(env.Event, "ok").Inc()
	})
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, env eventEnvelope) error {
	switch env.Event {
	case "charge.success":
		return s.handleChargeSuccess(ctx, env.Data)
	case "dedicatedaccount.assign.success":
		return s.handleVirtualAccountAssigned(ctx, env.Data)
	case "transfer.success":
		return s.handleTransferTerminal(ctx, env.Data, true, "")
	case "transfer.failed":
		return s.handleTransferTerminal(ctx, env.Data, false, "transfer failed at provider")
	case "transfer.reversed":
		return s.handleTransferTerminal(ctx, env.Data, false, "transfer reversed at provider")
	case "refund.processed":
		return s.handleRefundTerminal(ctx, env.Data, true)
	case "refund.failed":
		return s.handleRefundTerminal(ctx, env.Data, false)
	default:
		slog.Info("ignoring unknown webhook event", "event", env.Event)
		return nil
	}
}

type chargeData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Fees      int64  `json:"fees"`
	Channel   string `json:"channel"`
	Customer  struct {
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

func (s *WebhookService) handleChargeSuccess(ctx context.Context, data json.RawMessage) error {
	var c chargeData
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if c.Channel == "dedicated_nuban" {
		return s.handleWalletFunding(ctx, c)
	}
	return s.handleOrderPayment(ctx, c)
}

// handleOrderPayment marks the order paid, credits the merchant's
// settlement share and schedules its payout. A second delivery sees
// payment_status already paid and stops.
func (s *WebhookService) handleOrderPayment(ctx context.Context, c chargeData) error {
	order, err := s.orders.GetByReference(ctx, c.Reference)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			slog.Warn("charge for unknown order", "reference", c.Reference)
			return nil
		}
		return err
	}
	if order.PaymentStatus == models.PaymentPaid {
		return nil
	}

	if err := s.orders.SetPaymentStatus(ctx, order.ID, models.PaymentPaid, c.Reference); err != nil {
		return err
	}
	if err := s.orders.SetStatus(ctx, order.ID, models.OrderProcessing); err != nil {
		return err
	}

	platformFee, settlementAmount := s.settlements.ComputeFees(order.Total, c.Fees)
	_, err = s.ledger.Record(ctx, RecordParams{
		OwnerID:   order.MerchantID,
		OrderID:   &order.ID,
		Kind:      models.KindSettlement,
		Flow:      models.FlowCredit,
		Amount:    order.Total,
		Fee:       platformFee + c.Fees,
		Reference: "SETTLE-" + order.Reference,
		Metadata: map[string]any{
			"platform_fee":      platformFee,
			"gateway_fee":       c.Fees,
			"settlement_amount": settlementAmount,
		},
	})
	if err != nil && !errors.Is(err, errs.ErrDuplicate) {
		return err
	}

	if _, err := s.settlements.CreateForOrder(ctx, order, c.Fees); err != nil && !errors.Is(err, errs.ErrDuplicate) {
		return err
	}
	return nil
}

// handleWalletFunding credits money a customer pushed into their dedicated
// virtual account. The deterministic reference makes replays no-ops.
func (s *WebhookService) handleWalletFunding(ctx context.Context, c chargeData) error {
	w, err := s.wallets.GetByProviderCustomer(ctx, c.Customer.CustomerCode)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			slog.Warn("funding for unknown wallet", "customer", c.Customer.CustomerCode)
			return nil
		}
		return err
	}
	_, err = s.ledger.Record(ctx, RecordParams{
		OwnerID:   w.OwnerID,
		Kind:      models.KindWalletFunding,
		Flow:      models.FlowCredit,
		Amount:    c.Amount,
		Fee:       c.Fees,
		Reference: "FUND-" + c.Reference,
	})
	if errors.Is(err, errs.ErrDuplicate) {
		return nil
	}
	return err
}

func (s *WebhookService) handleVirtualAccountAssigned(ctx context.Context, data json.RawMessage) error {
	var d struct {
		Customer struct {
			CustomerCode string `json:"customer_code"`
		} `json:"customer"`
		DedicatedAccount struct {
			AccountNumber string `json:"account_number"`
			AccountName   string `json:"account_name"`
			Bank          struct {
				Name string `json:"name"`
			} `json:"bank"`
		} `json:"dedicated_account"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	w, err := s.wallets.GetByProviderCustomer(ctx, d.Customer.CustomerCode)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			slog.Warn("assignment for unknown wallet", "customer", d.Customer.CustomerCode)
			return nil
		}
		return err
	}
	if w.VirtualAccountNumber != nil && *w.VirtualAccountNumber == d.DedicatedAccount.AccountNumber {
		return nil
	}
	return s.wallets.AttachVirtualAccount(ctx, w.OwnerID,
		d.DedicatedAccount.AccountNumber,
		d.DedicatedAccount.AccountName,
		d.DedicatedAccount.Bank.Name,
	)
}

func (s *WebhookService) handleTransferTerminal(ctx context.Context, data json.RawMessage, success bool, reason string) error {
	var d struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	transfer, err := s.transfers.GetByReference(ctx, d.Reference)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			slog.Warn("terminal event for unknown transfer", "reference", d.Reference)
			return nil
		}
		return err
	}
	if success {
		return s.transfers.MarkSuccess(ctx, transfer)
	}
	return s.transfers.MarkFailed(ctx, transfer, reason)
}

func (s *WebhookService) handleRefundTerminal(ctx context.Context, data json.RawMessage, processed bool) error {
	var d struct {
		ID             int64  `json:"id"`
		TransactionRef string `json:"transaction_reference"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	providerRef := fmt.Sprintf("%d", d.ID)
	var err error
	if processed {
		err = s.refunds.ConfirmProcessed(ctx, providerRef)
	} else {
		err = s.refunds.ConfirmFailed(ctx, providerRef)
	}
	if errors.Is(err, errs.ErrNotFound) {
		slog.Warn("terminal event for unknown refund", "provider_ref", providerRef)
		return nil
	}
	return err
}
