package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
)

func testConfig() config.Config {
	rate, _ := decimal.NewFromString("0.05")
	return config.Config{
		Env:                 "test",
		Currency:            "NGN",
		PlatformWalletID:    "platform",
		PlatformFeeRate:     rate,
		MinSettlementAmount: 1000,
		SettlementHoldDays:  1,
		SettlementSchedule:  "daily",
		ReconcileInterval:   time.Minute,
		ReconcileCutoff:     10 * time.Minute,
	}
}

// fakeTx runs the closure without a real transaction. The tx-scoped repo
// fakes below ignore the pgx.Tx argument, so passing nil is fine.
type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (a *fakeAudit) Create(l models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, l)
	return nil
}

type fakeWallets struct {
	mu      sync.Mutex
	byOwner map[string]*models.Wallet
	seq     int
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{byOwner: map[string]*models.Wallet{}}
}

func (f *fakeWallets) GetOrCreate(ctx context.Context, ownerID, currency string) (models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.byOwner[ownerID]; ok {
		return *w, nil
	}
	f.seq++
	w := &models.Wallet{
		ID:       fmt.Sprintf("wal-%d", f.seq),
		OwnerID:  ownerID,
		Currency: currency,
		Status:   models.WalletActive,
	}
	f.byOwner[ownerID] = w
	return *w, nil
}

func (f *fakeWallets) Get(ctx context.Context, ownerID string) (models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byOwner[ownerID]
	if !ok {
		return models.Wallet{}, errs.ErrNotFound
	}
	return *w, nil
}

func (f *fakeWallets) GetByProviderCustomer(ctx context.Context, customerRef string) (models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.byOwner {
		if w.ProviderCustomerRef != nil && *w.ProviderCustomerRef == customerRef {
			return *w, nil
		}
	}
	return models.Wallet{}, errs.ErrNotFound
}

func (f *fakeWallets) GetForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (models.Wallet, error) {
	return f.Get(ctx, ownerID)
}

func (f *fakeWallets) SetBalance(ctx context.Context, tx pgx.Tx, ownerID string, available int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byOwner[ownerID]
	if !ok {
		return errs.ErrNotFound
	}
	w.AvailableBalance = available
	return nil
}

func (f *fakeWallets) AttachVirtualAccount(ctx context.Context, ownerID, accountNumber, accountName, bankName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byOwner[ownerID]
	if !ok {
		return errs.ErrNotFound
	}
	w.VirtualAccountNumber = &accountNumber
	w.VirtualAccountName = &accountName
	w.VirtualAccountBank = &bankName
	return nil
}

func (f *fakeWallets) SetProviderCustomer(ctx context.Context, ownerID, customerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byOwner[ownerID]
	if !ok {
		return errs.ErrNotFound
	}
	w.ProviderCustomerRef = &customerRef
	return nil
}


func (f *fakeWallets) SetPINHash(ctx context.Context, ownerID, pinHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byOwner[ownerID]
	if !ok {
		return errs.ErrNotFound
	}
	w.PINHash = pinHash
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
	seq     int
}

func (f *fakeLedger) Insert(ctx context.Context, tx pgx.Tx, e models.LedgerEntry) (models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.entries {
		if ex.Reference == e.Reference {
			return models.LedgerEntry{}, errs.ErrDuplicate
		}
	}
	f.seq++
	e.ID = fmt.Sprintf("led-%d", f.seq)
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLedger) GetByID(ctx context.Context, id string) (models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.LedgerEntry{}, errs.ErrNotFound
}

func (f *fakeLedger) GetByReference(ctx context.Context, reference string) (models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Reference == reference {
			return e, nil
		}
	}
	return models.LedgerEntry{}, errs.ErrNotFound
}

func (f *fakeLedger) MarkReversed(ctx context.Context, tx pgx.Tx, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Status = models.EntryReversed
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeLedger) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTransfers struct {
	mu    sync.Mutex
	byRef map[string]*models.Transfer
	seq   int
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{byRef: map[string]*models.Transfer{}}
}

func (f *fakeTransfers) Create(ctx context.Context, t models.Transfer) (models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byRef[t.Reference]; ok {
		return models.Transfer{}, errs.ErrDuplicate
	}
	f.seq++
	t.ID = fmt.Sprintf("trf-%d", f.seq)
	f.byRef[t.Reference] = &t
	return t, nil
}

func (f *fakeTransfers) GetByReference(ctx context.Context, reference string) (models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byRef[reference]
	if !ok {
		return models.Transfer{}, errs.ErrNotFound
	}
	return *t, nil
}

func (f *fakeTransfers) SetStatus(ctx context.Context, id string, status models.TransferStatus, failureReason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byRef {
		if t.ID == id {
			t.Status = status
			t.FailureReason = failureReason
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeTransfers) SetTransferCode(ctx context.Context, id, transferCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byRef {
		if t.ID == id {
			t.TransferCode = &transferCode
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeTransfers) ListStale(ctx context.Context, statuses []models.TransferStatus, before time.Time) ([]models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transfer
	for _, t := range f.byRef {
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

func (f *fakeTransfers) ListFailedSince(ctx context.Context, since time.Time) ([]models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transfer
	for _, t := range f.byRef {
		if t.Status == models.TransferFailed {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeSettlements struct {
	mu      sync.Mutex
	byOrder map[string]*models.Settlement
	seq     int
}

func newFakeSettlements() *fakeSettlements {
	return &fakeSettlements{byOrder: map[string]*models.Settlement{}}
}

func (f *fakeSettlements) Create(ctx context.Context, s models.Settlement) (models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byOrder[s.OrderID]; ok {
		return models.Settlement{}, errs.ErrDuplicate
	}
	f.seq++
	s.ID = fmt.Sprintf("stl-%d", f.seq)
	f.byOrder[s.OrderID] = &s
	return s, nil
}

func (f *fakeSettlements) GetByOrderID(ctx context.Context, orderID string) (models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byOrder[orderID]
	if !ok {
		return models.Settlement{}, errs.ErrNotFound
	}
	return *s, nil
}

func (f *fakeSettlements) ListDue(ctx context.Context, now time.Time) ([]models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Settlement
	for _, s := range f.byOrder {
		if s.Status != models.SettlementPending || s.Schedule == models.ScheduleManual {
			continue
		}
		if s.SettleAfter.After(now) {
			continue
		}
		if s.NextRetryAt != nil && s.NextRetryAt.After(now) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSettlements) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Settlement
	for _, s := range f.byOrder {
		if s.MerchantID == merchantID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSettlements) UnsettledTotal(ctx context.Context, merchantID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, s := range f.byOrder {
		if s.MerchantID != merchantID {
			continue
		}
		if s.Status == models.SettlementPending || s.Status == models.SettlementProcessing {
			total += s.SettlementAmount
		}
	}
	return total, nil
}

func (f *fakeSettlements) SetStatus(ctx context.Context, id string, status models.SettlementStatus, settledAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byOrder {
		if s.ID == id {
			s.Status = status
			s.SettledAt = settledAt
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeSettlements) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byOrder {
		if s.ID == id {
			s.Status = models.SettlementPending
			s.RetryCount++
			s.NextRetryAt = &nextRetryAt
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeRefunds struct {
	mu      sync.Mutex
	refunds []models.OrderRefund
	seq     int
}

func (f *fakeRefunds) Insert(ctx context.Context, tx pgx.Tx, r models.OrderRefund) (models.OrderRefund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r.ID = fmt.Sprintf("rfd-%d", f.seq)
	f.refunds = append(f.refunds, r)
	return r, nil
}

func (f *fakeRefunds) GetByID(ctx context.Context, id string) (models.OrderRefund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.refunds {
		if r.ID == id {
			return r, nil
		}
	}
	return models.OrderRefund{}, errs.ErrNotFound
}

func (f *fakeRefunds) GetByProviderRef(ctx context.Context, providerRef string) (models.OrderRefund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.refunds {
		if r.ProviderRef != nil && *r.ProviderRef == providerRef {
			return r, nil
		}
	}
	return models.OrderRefund{}, errs.ErrNotFound
}

func (f *fakeRefunds) ListByOrder(ctx context.Context, orderID string) ([]models.OrderRefund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OrderRefund
	for _, r := range f.refunds {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRefunds) SetStatus(ctx context.Context, id string, status models.RefundStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.refunds {
		if f.refunds[i].ID == id {
			f.refunds[i].Status = status
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeRefunds) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status models.RefundStatus) error {
	return f.SetStatus(ctx, id, status)
}

type fakeOrders struct {
	mu   sync.Mutex
	byID map[string]*models.Order
}

func newFakeOrders(orders ...models.Order) *fakeOrders {
	f := &fakeOrders{byID: map[string]*models.Order{}}
	for i := range orders {
		o := orders[i]
		f.byID[o.ID] = &o
	}
	return f
}

func (f *fakeOrders) GetWithItems(ctx context.Context, id string) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return models.Order{}, errs.ErrNotFound
	}
	return *o, nil
}

func (f *fakeOrders) GetByReference(ctx context.Context, reference string) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.Reference == reference {
			return *o, nil
		}
	}
	return models.Order{}, errs.ErrNotFound
}

func (f *fakeOrders) SetPaymentStatus(ctx context.Context, id string, ps models.PaymentStatus, providerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	o.PaymentStatus = ps
	o.PaymentRef = &providerRef
	return nil
}

func (f *fakeOrders) SetStatus(ctx context.Context, id string, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeOrders) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status models.OrderStatus, ps models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	o.Status = status
	o.PaymentStatus = ps
	return nil
}

type fakeInventory struct {
	mu        sync.Mutex
	restocked map[string]int
	err       error
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{restocked: map[string]int{}}
}

func (f *fakeInventory) IncrementStock(ctx context.Context, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.restocked[productID] += qty
	return nil
}

type fakeBankAccounts struct {
	mu       sync.Mutex
	accounts []models.BankAccount
	seq      int
}

func (f *fakeBankAccounts) Create(ctx context.Context, b models.BankAccount) (models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.OwnerID == b.OwnerID && a.AccountNumber == b.AccountNumber && a.BankCode == b.BankCode {
			return models.BankAccount{}, errs.ErrDuplicate
		}
	}
	f.seq++
	b.ID = fmt.Sprintf("bnk-%d", f.seq)
	f.accounts = append(f.accounts, b)
	return b, nil
}

func (f *fakeBankAccounts) GetByIDAndOwner(ctx context.Context, id, ownerID string) (models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.ID == id && a.OwnerID == ownerID {
			return a, nil
		}
	}
	return models.BankAccount{}, errs.ErrNotFound
}

func (f *fakeBankAccounts) GetDefault(ctx context.Context, ownerID string) (models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.OwnerID == ownerID && a.IsDefault {
			return a, nil
		}
	}
	for _, a := range f.accounts {
		if a.OwnerID == ownerID {
			return a, nil
		}
	}
	return models.BankAccount{}, errs.ErrNotFound
}

func (f *fakeBankAccounts) SetRecipientCode(ctx context.Context, id, recipientCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			f.accounts[i].RecipientCode = &recipientCode
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeBankAccounts) ListByOwner(ctx context.Context, ownerID string) ([]models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BankAccount
	for _, a := range f.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeGateway implements provider.Gateway with overridable function fields.
// Unset fields return zero values, so each test only wires what it needs.
type fakeGateway struct {
	CreateVirtualAccountFn func(ctx context.Context, req provider.VirtualAccountRequest) (provider.VirtualAccount, error)
	TransferToBankFn       func(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error)
	FinalizeTransferFn     func(ctx context.Context, transferCode, otp string) (provider.TransferResult, error)
	FetchTransferFn        func(ctx context.Context, reference string) (provider.TransferResult, error)
	RefundFn               func(ctx context.Context, req provider.RefundRequest) (provider.RefundResult, error)
	ResolveBankAccountFn   func(ctx context.Context, accountNumber, bankCode string) (provider.ResolvedAccount, error)
	ValidateSignatureFn    func(signature string, body []byte) error
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateVirtualAccount(ctx context.Context, req provider.VirtualAccountRequest) (provider.VirtualAccount, error) {
	if g.CreateVirtualAccountFn != nil {
		return g.CreateVirtualAccountFn(ctx, req)
	}
	return provider.VirtualAccount{CustomerRef: "CUS_test"}, nil
}

func (g *fakeGateway) InitializePayment(ctx context.Context, req provider.PaymentRequest) (provider.PaymentSession, error) {
	return provider.PaymentSession{Reference: req.Reference}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, reference string) (provider.PaymentStatus, error) {
	return provider.PaymentStatus{Reference: reference}, nil
}

func (g *fakeGateway) CreateTransferRecipient(ctx context.Context, r provider.Recipient) (string, error) {
	return "RCP_test", nil
}

func (g *fakeGateway) TransferToBank(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	if g.TransferToBankFn != nil {
		return g.TransferToBankFn(ctx, req)
	}
	return provider.TransferResult{State: provider.TransferStateSuccess, Reference: req.Reference}, nil
}

func (g *fakeGateway) FinalizeTransfer(ctx context.Context, transferCode, otp string) (provider.TransferResult, error) {
	if g.FinalizeTransferFn != nil {
		return g.FinalizeTransferFn(ctx, transferCode, otp)
	}
	return provider.TransferResult{State: provider.TransferStateSuccess}, nil
}

func (g *fakeGateway) FetchTransfer(ctx context.Context, reference string) (provider.TransferResult, error) {
	if g.FetchTransferFn != nil {
		return g.FetchTransferFn(ctx, reference)
	}
	return provider.TransferResult{State: provider.TransferStatePending, Reference: reference}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req provider.RefundRequest) (provider.RefundResult, error) {
	if g.RefundFn != nil {
		return g.RefundFn(ctx, req)
	}
	return provider.RefundResult{RefundRef: "REF_test", Status: "pending"}, nil
}

func (g *fakeGateway) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (provider.ResolvedAccount, error) {
	if g.ResolveBankAccountFn != nil {
		return g.ResolveBankAccountFn(ctx, accountNumber, bankCode)
	}
	return provider.ResolvedAccount{AccountNumber: accountNumber, AccountName: "TEST ACCOUNT"}, nil
}

func (g *fakeGateway) ListBanks(ctx context.Context) ([]provider.Bank, error) {
	return []provider.Bank{{Name: "Test Bank", Code: "001"}}, nil
}

func (g *fakeGateway) FetchBalance(ctx context.Context) (int64, string, error) {
	return 0, "NGN", nil
}

func (g *fakeGateway) WalletTransfer(ctx context.Context, fromRef, toRef string, amount int64) error {
	return errs.ErrUnsupported
}

func (g *fakeGateway) ValidateSignature(signature string, body []byte) error {
	if g.ValidateSignatureFn != nil {
		return g.ValidateSignatureFn(signature, body)
	}
	return nil
}
