package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/models"
	repo "github.com/sellium/payments-backend/internal/repository"
)

// SettlementService computes merchant payouts and decides when to release
// them. A settlement is released only once the merchant's unsettled total
// reaches the configured minimum and the hold period has elapsed.
type SettlementService struct {
	settlements repo.Settlements
	transfers   *TransferService
	cfg         config.Config
}

func NewSettlementService(s repo.Settlements, t *TransferService, cfg config.Config) *SettlementService {
	return &SettlementService{settlements: s, transfers: t, cfg: cfg}
}

// ComputeFees splits an order amount into the platform fee and the
// merchant's settlement amount. The platform share of a percentage split
// is rounded half-up; the merchant gets the exact remainder, so the parts
// always sum to the gross amount.
func (s *SettlementService) ComputeFees(orderAmount, gatewayFee int64) (platformFee, settlementAmount int64) {
	platformFee = decimal.NewFromInt(orderAmount).
		Mul(s.cfg.PlatformFeeRate).
		Round(0).
		IntPart()
	settlementAmount = orderAmount - platformFee - gatewayFee
	if settlementAmount < 0 {
		settlementAmount = 0
	}
	return platformFee, settlementAmount
}

// NextSettlementDate returns when the next run for a schedule falls due.
// Manual settlements are never auto-released.
func (s *SettlementService) NextSettlementDate(schedule models.SettlementSchedule, after time.Time) time.Time {
	switch schedule {
	case models.ScheduleInstant:
		return after
	case models.ScheduleDaily:
		return after.AddDate(0, 0, 1)
	case models.ScheduleWeekly:
		return after.AddDate(0, 0, 7)
	case models.ScheduleMonthly:
		return after.AddDate(0, 1, 0)
	default:
		return time.Time{}
	}
}

// CreateForOrder records the pending settlement for a freshly paid order.
func (s *SettlementService) CreateForOrder(ctx context.Context, order models.Order, gatewayFee int64) (models.Settlement, error) {
	platformFee, amount := s.ComputeFees(order.Total, gatewayFee)
	schedule := models.SettlementSchedule(s.cfg.SettlementSchedule)
	holdUntil := time.Now().AddDate(0, 0, s.cfg.SettlementHoldDays)
	return s.settlements.Create(ctx, models.Settlement{
		OrderID:          order.ID,
		MerchantID:       order.MerchantID,
		OrderAmount:      order.Total,
		PlatformFee:      platformFee,
		GatewayFee:       gatewayFee,
		SettlementAmount: amount,
		Currency:         order.Currency,
		Status:           models.SettlementPending,
		Schedule:         schedule,
		SettleAfter:      holdUntil,
	})
}

// RunDue releases every eligible settlement. Merchants below the minimum
// unsettled amount are skipped until they accumulate enough.
func (s *SettlementService) RunDue(ctx context.Context, now time.Time) error {
	due, err := s.settlements.ListDue(ctx, now)
	if err != nil {
		return err
	}

	skippedMerchants := map[string]bool{}
	for _, st := range due {
		if skippedMerchants[st.MerchantID] {
			continue
		}
		unsettled, err := s.settlements.UnsettledTotal(ctx, st.MerchantID)
		if err != nil {
			slog.Error("unsettled total", "merchant", st.MerchantID, "err", err)
			continue
		}
		if unsettled < s.cfg.MinSettlementAmount {
			skippedMerchants[st.MerchantID] = true
			slog.Debug("merchant below settlement minimum",
				"merchant", st.MerchantID, "unsettled", unsettled, "min", s.cfg.MinSettlementAmount)
			continue
		}
		s.release(ctx, st, now)
	}
	return nil
}

func (s *SettlementService) release(ctx context.Context, st models.Settlement, now time.Time) {
	if st.SettlementAmount == 0 {
		done := now
		_ = s.settlements.SetStatus(ctx, st.ID, models.SettlementCompleted, &done)
		return
	}
	if err := s.settlements.SetStatus(ctx, st.ID, models.SettlementProcessing, nil); err != nil {
		slog.Error("settlement status", "settlement", st.ID, "err", err)
		return
	}
	if _, err := s.transfers.PayoutSettlement(ctx, st); err != nil {
		slog.Error("settlement payout failed", "settlement", st.ID, "err", err)
		retryAt := s.NextSettlementDate(st.Schedule, now)
		if retryAt.IsZero() {
			retryAt = now.AddDate(0, 0, 1)
		}
		_ = s.settlements.ScheduleRetry(ctx, st.ID, retryAt)
		return
	}
	done := now
	if err := s.settlements.SetStatus(ctx, st.ID, models.SettlementCompleted, &done); err != nil {
		slog.Error("settlement status", "settlement", st.ID, "err", err)
		return
	}
	metrics.SettlementsReleased.Inc()
}

func (s *SettlementService) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.Settlement, error) {
	return s.settlements.ListByMerchant(ctx, merchantID, limit, offset)
}
