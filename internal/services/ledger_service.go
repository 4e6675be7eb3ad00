package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/models"
	repo "github.com/sellium/payments-backend/internal/repository"
)

// LedgerService is the source of truth for balances. Every money movement
// is one appended entry with a before/after snapshot; the wallet row is a
// materialized cache updated in the same transaction under a row lock.
type LedgerService struct {
	entries repo.LedgerEntries
	wallets repo.Wallets
	audit   repo.AuditLogs
	tx      repo.Tx
	cfg     config.Config
}

func NewLedgerService(e repo.LedgerEntries, w repo.Wallets, a repo.AuditLogs, tx repo.Tx, cfg config.Config) *LedgerService {
	return &LedgerService{entries: e, wallets: w, audit: a, tx: tx, cfg: cfg}
}

type RecordParams struct {
	OwnerID     string
	OrderID     *string
	Kind        models.EntryKind
	Flow        models.EntryFlow
	Amount      int64
	Fee         int64
	Reference   string
	ProviderRef *string
	Metadata    map[string]any
}

func (p RecordParams) validate() error {
	if p.OwnerID == "" {
		return errs.Validation("owner id required")
	}
	if p.Reference == "" {
		return errs.Validation("reference required")
	}
	if p.Amount <= 0 {
		return errs.Validation("amount must be > 0")
	}
	if p.Fee < 0 || p.Fee > p.Amount {
		return errs.Validation("fee must be between 0 and amount")
	}
	return nil
}

// Record appends one entry and updates the wallet balance atomically.
func (s *LedgerService) Record(ctx context.Context, p RecordParams) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = s.RecordInTx(ctx, tx, p)
		return err
	})
	return entry, err
}

// RecordInTx is the transaction-scoped primitive behind Record. Callers
// composing multiple entries (refund's dual debit) run it inside their own
// repo.Tx so all writes commit or roll back together.
func (s *LedgerService) RecordInTx(ctx context.Context, tx pgx.Tx, p RecordParams) (models.LedgerEntry, error) {
	if err := p.validate(); err != nil {
		return models.LedgerEntry{}, err
	}

	w, err := s.wallets.GetForUpdate(ctx, tx, p.OwnerID)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("lock wallet %s: %w", p.OwnerID, err)
	}

	net := p.Amount - p.Fee
	before := w.AvailableBalance
	var after int64
	switch p.Flow {
	case models.FlowCredit:
		after = before + net
	case models.FlowDebit:
		if before-net < 0 {
			return models.LedgerEntry{}, errs.ErrInsufficientFunds
		}
		after = before - net
	default:
		return models.LedgerEntry{}, errs.Validation("unknown flow %q", p.Flow)
	}

	entry := models.LedgerEntry{
		Reference:     p.Reference,
		OwnerID:       p.OwnerID,
		OrderID:       p.OrderID,
		Kind:          p.Kind,
		Flow:          p.Flow,
		Status:        models.EntrySuccess,
		Amount:        p.Amount,
		Fee:           p.Fee,
		NetAmount:     net,
		Currency:      w.Currency,
		BalanceBefore: before,
		BalanceAfter:  after,
		ProviderRef:   p.ProviderRef,
		Metadata:      p.Metadata,
	}
	entry, err = s.entries.Insert(ctx, tx, entry)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if err := s.wallets.SetBalance(ctx, tx, p.OwnerID, after); err != nil {
		return models.LedgerEntry{}, err
	}

	metrics.LedgerEntriesTotal.WithLabelValues(string(p.Kind), string(p.Flow)).Inc()
	s.auditEntry(entry.ID, "recorded", fmt.Sprintf("%s %s %d", p.Kind, p.Flow, net))
	return entry, nil
}

// Reverse appends a compensating entry with the opposite flow and the same
// net amount, then marks the original reversed. The original is never
// edited; compensation is additive to preserve the audit trail.
func (s *LedgerService) Reverse(ctx context.Context, original models.LedgerEntry) (models.LedgerEntry, error) {
	var reversal models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		reversal, err = s.ReverseInTx(ctx, tx, original)
		return err
	})
	return reversal, err
}

// ReverseInTx is the transaction-scoped primitive behind Reverse, for
// callers reversing several entries atomically.
func (s *LedgerService) ReverseInTx(ctx context.Context, tx pgx.Tx, original models.LedgerEntry) (models.LedgerEntry, error) {
	if original.Status != models.EntrySuccess {
		return models.LedgerEntry{}, errs.Validation("only success entries can be reversed, got %q", original.Status)
	}
	flow := models.FlowCredit
	if original.Flow == models.FlowCredit {
		flow = models.FlowDebit
	}

	reversal, err := s.RecordInTx(ctx, tx, RecordParams{
		OwnerID:   original.OwnerID,
		OrderID:   original.OrderID,
		Kind:      original.Kind,
		Flow:      flow,
		Amount:    original.NetAmount,
		Fee:       0,
		Reference: "RVS-" + original.Reference,
		Metadata:  map[string]any{"reversal_of": original.ID},
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if err := s.entries.MarkReversed(ctx, tx, original.ID); err != nil {
		return models.LedgerEntry{}, err
	}
	s.auditEntry(original.ID, "reversed", "compensated by "+reversal.ID)
	return reversal, nil
}

func (s *LedgerService) GetByReference(ctx context.Context, reference string) (models.LedgerEntry, error) {
	return s.entries.GetByReference(ctx, reference)
}

func (s *LedgerService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.entries.ListByOwner(ctx, ownerID, limit, offset)
}

// ---------------- wallet operations ----------------

func (s *LedgerService) GetOrCreateWallet(ctx context.Context, ownerID string) (models.Wallet, error) {
	return s.wallets.GetOrCreate(ctx, ownerID, s.cfg.Currency)
}

func (s *LedgerService) GetWallet(ctx context.Context, ownerID string) (models.Wallet, error) {
	return s.wallets.Get(ctx, ownerID)
}

func (s *LedgerService) SetWalletPIN(ctx context.Context, ownerID, pin string) error {
	if len(pin) < 4 {
		return errs.Validation("pin must be at least 4 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.wallets.SetPINHash(ctx, ownerID, string(hash))
}

func (s *LedgerService) VerifyWalletPIN(ctx context.Context, ownerID, pin string) error {
	w, err := s.wallets.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if w.PINHash == "" {
		return errs.Validation("wallet pin not set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(w.PINHash), []byte(pin)); err != nil {
		return errs.Validation("invalid wallet pin")
	}
	return nil
}

func (s *LedgerService) auditEntry(entityID, action, details string) {
	var det map[string]any
	if details != "" {
		det = map[string]any{"message": details}
	}
	if err := s.audit.Create(models.AuditLog{
		EntityType: "ledger_entry",
		EntityID:   &entityID,
		Action:     action,
		Details:    det,
	}); err != nil {
		slog.Warn("audit write failed", "entity", entityID, "err", err)
	}
}
