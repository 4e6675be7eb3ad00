package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
)

type settlementHarness struct {
	svc         *SettlementService
	transferSvc *TransferService
	ledgerSvc   *LedgerService
	settlements *fakeSettlements
	wallets     *fakeWallets
	transfers   *fakeTransfers
	accounts    *fakeBankAccounts
	gw          *fakeGateway
}

func newSettlementHarness(t *testing.T) *settlementHarness {
	t.Helper()
	h := &settlementHarness{
		settlements: newFakeSettlements(),
		wallets:     newFakeWallets(),
		transfers:   newFakeTransfers(),
		accounts:    &fakeBankAccounts{},
		gw:          &fakeGateway{},
	}
	cfg := testConfig()
	h.ledgerSvc = NewLedgerService(&fakeLedger{}, h.wallets, &fakeAudit{}, fakeTx{}, cfg)
	h.transferSvc = NewTransferService(h.transfers, h.accounts, &fakeAudit{}, h.ledgerSvc, h.gw, cfg)
	h.svc = NewSettlementService(h.settlements, h.transferSvc, cfg)
	return h
}

func TestComputeFees(t *testing.T) {
	h := newSettlementHarness(t)

	platform, amount := h.svc.ComputeFees(10000, 100)
	require.Equal(t, int64(500), platform)
	require.Equal(t, int64(9400), amount)

	// Half-up rounding on the platform share.
	platform, _ = h.svc.ComputeFees(10001, 0)
	require.Equal(t, int64(500), platform)
	platform, _ = h.svc.ComputeFees(10010, 0)
	require.Equal(t, int64(501), platform)

	// The merchant share never goes negative.
	_, amount = h.svc.ComputeFees(100, 200)
	require.Equal(t, int64(0), amount)
}

func TestNextSettlementDate(t *testing.T) {
	h := newSettlementHarness(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.Equal(t, base, h.svc.NextSettlementDate(models.ScheduleInstant, base))
	require.Equal(t, base.AddDate(0, 0, 1), h.svc.NextSettlementDate(models.ScheduleDaily, base))
	require.Equal(t, base.AddDate(0, 0, 7), h.svc.NextSettlementDate(models.ScheduleWeekly, base))
	require.Equal(t, base.AddDate(0, 1, 0), h.svc.NextSettlementDate(models.ScheduleMonthly, base))
	require.True(t, h.svc.NextSettlementDate(models.ScheduleManual, base).IsZero())
}

func TestCreateForOrder(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()

	st, err := h.svc.CreateForOrder(ctx, models.Order{
		ID:         "ord-1",
		MerchantID: "m-1",
		Total:      10000,
		Currency:   "NGN",
	}, 100)
	require.NoError(t, err)
	require.Equal(t, int64(500), st.PlatformFee)
	require.Equal(t, int64(9400), st.SettlementAmount)
	require.Equal(t, models.SettlementPending, st.Status)
	require.True(t, st.SettleAfter.After(time.Now()), "hold period should push settle_after into the future")
}

func TestRunDueReleasesEligible(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	now := time.Now()

	seedWallet(t, h.ledgerSvc, "m-1", 20000)
	_, err := h.accounts.Create(ctx, models.BankAccount{
		OwnerID: "m-1", BankCode: "058", AccountNumber: "0123456789", AccountName: "MERCHANT", IsDefault: true,
	})
	require.NoError(t, err)

	st, err := h.settlements.Create(ctx, models.Settlement{
		OrderID:          "ord-1",
		MerchantID:       "m-1",
		OrderAmount:      10000,
		PlatformFee:      500,
		SettlementAmount: 9500,
		Currency:         "NGN",
		Status:           models.SettlementPending,
		Schedule:         models.ScheduleDaily,
		SettleAfter:      now.Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.RunDue(ctx, now))

	got, err := h.settlements.GetByOrderID(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, models.SettlementCompleted, got.Status)
	require.NotNil(t, got.SettledAt)

	// The payout went through a transfer keyed by the settlement id.
	tr, err := h.transfers.GetByReference(ctx, "STL-"+st.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransferSuccess, tr.Status)
	require.Equal(t, int64(9500), tr.Amount)

	w, _ := h.wallets.Get(ctx, "m-1")
	require.Equal(t, int64(10500), w.AvailableBalance)
}

func TestRunDueSkipsBelowMinimum(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	now := time.Now()

	// MinSettlementAmount in testConfig is 1000.
	_, err := h.settlements.Create(ctx, models.Settlement{
		OrderID:          "ord-small",
		MerchantID:       "m-2",
		SettlementAmount: 500,
		Status:           models.SettlementPending,
		Schedule:         models.ScheduleDaily,
		SettleAfter:      now.Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.RunDue(ctx, now))

	got, err := h.settlements.GetByOrderID(ctx, "ord-small")
	require.NoError(t, err)
	require.Equal(t, models.SettlementPending, got.Status)
	require.Equal(t, 0, len(h.transfers.byRef))
}

func TestRunDuePayoutFailureSchedulesRetry(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	now := time.Now()

	seedWallet(t, h.ledgerSvc, "m-1", 20000)
	_, err := h.accounts.Create(ctx, models.BankAccount{
		OwnerID: "m-1", BankCode: "058", AccountNumber: "0123456789", AccountName: "MERCHANT", IsDefault: true,
	})
	require.NoError(t, err)
	h.gw.TransferToBankFn = func(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
		return provider.TransferResult{State: provider.TransferStateFailed, FailureText: "provider down"}, nil
	}

	_, err = h.settlements.Create(ctx, models.Settlement{
		OrderID:          "ord-1",
		MerchantID:       "m-1",
		SettlementAmount: 9500,
		Status:           models.SettlementPending,
		Schedule:         models.ScheduleDaily,
		SettleAfter:      now.Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.RunDue(ctx, now))

	got, err := h.settlements.GetByOrderID(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, models.SettlementPending, got.Status)
	require.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)

	// The failed payout debit was compensated.
	w, _ := h.wallets.Get(ctx, "m-1")
	require.Equal(t, int64(20000), w.AvailableBalance)

	// The retry gets a fresh transfer reference, so the failed attempt's
	// row does not block it once the provider recovers.
	h.gw.TransferToBankFn = nil
	require.NoError(t, h.svc.RunDue(ctx, now.Add(25*time.Hour)))

	got, err = h.settlements.GetByOrderID(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, models.SettlementCompleted, got.Status)

	tr, err := h.transfers.GetByReference(ctx, "STL-"+got.ID+"-1")
	require.NoError(t, err)
	require.Equal(t, models.TransferSuccess, tr.Status)

	w, _ = h.wallets.Get(ctx, "m-1")
	require.Equal(t, int64(10500), w.AvailableBalance)
}

func TestRunDueZeroAmountCompletesWithoutPayout(t *testing.T) {
	h := newSettlementHarness(t)
	ctx := context.Background()
	now := time.Now()

	// Fees swallowed the whole order; there is nothing to pay out but the
	// settlement still needs a terminal state. The merchant's other pending
	// settlement keeps the unsettled total above the minimum.
	_, err := h.settlements.Create(ctx, models.Settlement{
		OrderID:          "ord-zero",
		MerchantID:       "m-1",
		SettlementAmount: 0,
		Status:           models.SettlementPending,
		Schedule:         models.ScheduleDaily,
		SettleAfter:      now.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = h.settlements.Create(ctx, models.Settlement{
		OrderID:          "ord-later",
		MerchantID:       "m-1",
		SettlementAmount: 5000,
		Status:           models.SettlementPending,
		Schedule:         models.ScheduleDaily,
		SettleAfter:      now.Add(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.RunDue(ctx, now))

	got, err := h.settlements.GetByOrderID(ctx, "ord-zero")
	require.NoError(t, err)
	require.Equal(t, models.SettlementCompleted, got.Status)
	require.Equal(t, 0, len(h.transfers.byRef))
}
