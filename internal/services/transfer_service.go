package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/metrics"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
	repo "github.com/sellium/payments-backend/internal/repository"
)

// TransferService drives outbound payouts as a two-step saga: debit the
// wallet first, then call the processor. The external call is the only
// step that can fail unpredictably, so the compensating action is always
// "give the money back", never "try to take it twice".
type TransferService struct {
	transfers repo.Transfers
	accounts  repo.BankAccounts
	audit     repo.AuditLogs
	ledger    *LedgerService
	gateway   provider.Gateway
	cfg       config.Config
}

func NewTransferService(t repo.Transfers, b repo.BankAccounts, a repo.AuditLogs, l *LedgerService, g provider.Gateway, cfg config.Config) *TransferService {
	return &TransferService{transfers: t, accounts: b, audit: a, ledger: l, gateway: g, cfg: cfg}
}

type WithdrawParams struct {
	OwnerID       string
	BankAccountID string
	Amount        int64
	PIN           string
	Reference     string // optional; generated when empty
}

// Withdraw moves wallet funds to the owner's linked bank account.
func (s *TransferService) Withdraw(ctx context.Context, p WithdrawParams) (models.Transfer, error) {
	if p.Amount <= 0 {
		return models.Transfer{}, errs.Validation("amount must be > 0")
	}
	if err := s.ledger.VerifyWalletPIN(ctx, p.OwnerID, p.PIN); err != nil {
		return models.Transfer{}, err
	}
	acct, err := s.accounts.GetByIDAndOwner(ctx, p.BankAccountID, p.OwnerID)
	if err != nil {
		return models.Transfer{}, fmt.Errorf("bank account: %w", err)
	}
	ref := p.Reference
	if ref == "" {
		ref = "TRF-" + uuid.NewString()
	}
	return s.execute(ctx, p.OwnerID, acct, p.Amount, models.KindWithdrawal, ref, "wallet withdrawal")
}

// PayoutSettlement pays a released settlement to the merchant's bank
// account. System-initiated, so no PIN check.
func (s *TransferService) PayoutSettlement(ctx context.Context, st models.Settlement) (models.Transfer, error) {
	var acct models.BankAccount
	var err error
	if st.BankAccountID != nil {
		acct, err = s.accounts.GetByIDAndOwner(ctx, *st.BankAccountID, st.MerchantID)
	} else {
		acct, err = s.accounts.GetDefault(ctx, st.MerchantID)
	}
	if err != nil {
		return models.Transfer{}, fmt.Errorf("merchant bank account: %w", err)
	}
	// Reference derived from the settlement id plus the attempt number:
	// the unique index rejects double processing within one attempt while
	// a retry after a failed payout gets a fresh reference.
	ref := "STL-" + st.ID
	if st.RetryCount > 0 {
		ref = fmt.Sprintf("STL-%s-%d", st.ID, st.RetryCount)
	}
	return s.execute(ctx, st.MerchantID, acct, st.SettlementAmount, models.KindPayout, ref, "merchant settlement")
}

func (s *TransferService) execute(ctx context.Context, ownerID string, acct models.BankAccount, amount int64, kind models.EntryKind, reference, reason string) (models.Transfer, error) {
	// Step 0: durable pending record of the attempt. A crash after the
	// debit is recoverable by the reconciler through this row.
	transfer, err := s.transfers.Create(ctx, models.Transfer{
		Reference: reference,
		OwnerID:   ownerID,
		BankAccountID: func() *string {
			if acct.ID == "" {
				return nil
			}
			return &acct.ID
		}(),
		Amount:    amount,
		Currency:  s.cfg.Currency,
		Status:    models.TransferPending,
		Kind:      kind,
		LedgerRef: "LDG-" + reference,
	})
	if err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			return models.Transfer{}, fmt.Errorf("transfer %s already processed: %w", reference, err)
		}
		return models.Transfer{}, err
	}

	// Step 1: reserve the funds. The debit commits before the external
	// call so no database lock is held across the network.
	debit, err := s.ledger.Record(ctx, RecordParams{
		OwnerID:   ownerID,
		Kind:      kind,
		Flow:      models.FlowDebit,
		Amount:    amount,
		Reference: transfer.LedgerRef,
	})
	if err != nil {
		reasonTxt := err.Error()
		_ = s.transfers.SetStatus(ctx, transfer.ID, models.TransferFailed, &reasonTxt)
		return models.Transfer{}, err
	}

	recipient, err := s.ensureRecipient(ctx, acct)
	if err != nil {
		return s.compensate(ctx, transfer, debit, err)
	}

	// Step 2: the external call.
	res, err := s.gateway.TransferToBank(ctx, provider.TransferRequest{
		Reference:     transfer.Reference,
		RecipientCode: recipient,
		Amount:        amount,
		Currency:      s.cfg.Currency,
		Reason:        reason,
	})
	if err != nil {
		return s.compensate(ctx, transfer, debit, err)
	}

	// Step 3: settle the state machine.
	switch res.State {
	case provider.TransferStateSuccess, provider.TransferStatePending:
		// pending at the provider still means funds committed; the webhook
		// or reconciler delivers the terminal state.
		status := models.TransferSuccess
		if res.State == provider.TransferStatePending {
			status = models.TransferPending
		}
		if res.TransferCode != "" {
			_ = s.transfers.SetTransferCode(ctx, transfer.ID, res.TransferCode)
		}
		if err := s.transfers.SetStatus(ctx, transfer.ID, status, nil); err != nil {
			return models.Transfer{}, err
		}
		transfer.Status = status
		metrics.TransfersTotal.WithLabelValues(string(status)).Inc()
		s.auditTransfer(transfer.ID, "initiated", string(res.State))
		return transfer, nil

	case provider.TransferStateOTP:
		// Funds are already committed by the processor; the debit stays.
		if err := s.transfers.SetTransferCode(ctx, transfer.ID, res.TransferCode); err != nil {
			return models.Transfer{}, err
		}
		if err := s.transfers.SetStatus(ctx, transfer.ID, models.TransferOTPRequired, nil); err != nil {
			return models.Transfer{}, err
		}
		transfer.Status = models.TransferOTPRequired
		transfer.TransferCode = &res.TransferCode
		s.auditTransfer(transfer.ID, "otp_required", res.TransferCode)
		return transfer, nil

	default:
		return s.compensate(ctx, transfer, debit, fmt.Errorf("provider declined: %s", res.FailureText))
	}
}

// compensate re-credits the debited amount and marks the transfer failed.
func (s *TransferService) compensate(ctx context.Context, transfer models.Transfer, debit models.LedgerEntry, cause error) (models.Transfer, error) {
	if _, err := s.ledger.Reverse(ctx, debit); err != nil {
		// Reversal failure leaves reserved funds; the reconciler retries
		// from the pending transfer row.
		slog.Error("transfer compensation failed", "transfer", transfer.ID, "err", err)
	}
	reason := cause.Error()
	_ = s.transfers.SetStatus(ctx, transfer.ID, models.TransferFailed, &reason)
	metrics.TransfersTotal.WithLabelValues(string(models.TransferFailed)).Inc()
	s.auditTransfer(transfer.ID, "failed", reason)
	return models.Transfer{}, cause
}

// Finalize completes an OTP-gated transfer.
func (s *TransferService) Finalize(ctx context.Context, reference, otp string) (models.Transfer, error) {
	transfer, err := s.transfers.GetByReference(ctx, reference)
	if err != nil {
		return models.Transfer{}, err
	}
	if transfer.Status != models.TransferOTPRequired {
		return models.Transfer{}, errs.Validation("transfer %s is not awaiting otp", reference)
	}
	if transfer.TransferCode == nil {
		return models.Transfer{}, errs.Validation("transfer %s has no provider handle", reference)
	}

	res, err := s.gateway.FinalizeTransfer(ctx, *transfer.TransferCode, otp)
	if err != nil {
		debit, lerr := s.ledger.GetByReference(ctx, transfer.LedgerRef)
		if lerr == nil {
			return s.compensate(ctx, transfer, debit, err)
		}
		return models.Transfer{}, err
	}
	switch res.State {
	case provider.TransferStateSuccess, provider.TransferStatePending:
		if err := s.transfers.SetStatus(ctx, transfer.ID, models.TransferSuccess, nil); err != nil {
			return models.Transfer{}, err
		}
		transfer.Status = models.TransferSuccess
		metrics.TransfersTotal.WithLabelValues(string(models.TransferSuccess)).Inc()
		s.auditTransfer(transfer.ID, "finalized", "")
		return transfer, nil
	default:
		debit, lerr := s.ledger.GetByReference(ctx, transfer.LedgerRef)
		if lerr != nil {
			return models.Transfer{}, lerr
		}
		return s.compensate(ctx, transfer, debit, fmt.Errorf("finalize declined: %s", res.FailureText))
	}
}

// MarkSuccess applies an externally observed success (webhook, reconciler).
// Safe to call repeatedly: terminal transfers are left alone.
func (s *TransferService) MarkSuccess(ctx context.Context, transfer models.Transfer) error {
	if transfer.Status.Terminal() {
		return nil
	}
	if err := s.transfers.SetStatus(ctx, transfer.ID, models.TransferSuccess, nil); err != nil {
		return err
	}
	metrics.TransfersTotal.WithLabelValues(string(models.TransferSuccess)).Inc()
	s.auditTransfer(transfer.ID, "confirmed", "")
	return nil
}

// MarkFailed applies an externally observed failure, compensating the
// original debit if it has not been reversed yet.
func (s *TransferService) MarkFailed(ctx context.Context, transfer models.Transfer, reason string) error {
	if transfer.Status.Terminal() {
		return nil
	}
	debit, err := s.ledger.GetByReference(ctx, transfer.LedgerRef)
	if err != nil {
		return err
	}
	if debit.Status == models.EntrySuccess {
		if _, err := s.ledger.Reverse(ctx, debit); err != nil {
			return err
		}
	}
	if err := s.transfers.SetStatus(ctx, transfer.ID, models.TransferFailed, &reason); err != nil {
		return err
	}
	metrics.TransfersTotal.WithLabelValues(string(models.TransferFailed)).Inc()
	s.auditTransfer(transfer.ID, "failed", reason)
	return nil
}

// ReinstateSuccess corrects a transfer that was compensated locally but in
// fact paid out at the provider. The earlier reversal put the funds back,
// so a fresh debit claws them out again before the transfer flips to
// success. Returns ErrInsufficientFunds when the owner has already spent
// the reversed amount; that case needs manual follow-up.
func (s *TransferService) ReinstateSuccess(ctx context.Context, transfer models.Transfer) error {
	if transfer.Status != models.TransferFailed {
		return nil
	}
	debit, err := s.ledger.GetByReference(ctx, transfer.LedgerRef)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// No debit was ever recorded, so no reversal to balance out.
			return s.transfers.SetStatus(ctx, transfer.ID, models.TransferSuccess, nil)
		}
		return err
	}
	if debit.Status == models.EntryReversed {
		_, err = s.ledger.Record(ctx, RecordParams{
			OwnerID:   transfer.OwnerID,
			Kind:      transfer.Kind,
			Flow:      models.FlowDebit,
			Amount:    transfer.Amount,
			Reference: "RDB-" + transfer.Reference,
			Metadata:  map[string]any{"reinstates": transfer.ID},
		})
		if err != nil && !errors.Is(err, errs.ErrDuplicate) {
			return err
		}
	}
	if err := s.transfers.SetStatus(ctx, transfer.ID, models.TransferSuccess, nil); err != nil {
		return err
	}
	metrics.TransfersTotal.WithLabelValues(string(models.TransferSuccess)).Inc()
	s.auditTransfer(transfer.ID, "reinstated", "provider reported success after local failure")
	return nil
}

func (s *TransferService) GetByReference(ctx context.Context, reference string) (models.Transfer, error) {
	return s.transfers.GetByReference(ctx, reference)
}

// ensureRecipient creates the provider-side transfer recipient once and
// caches the handle on the bank account.
func (s *TransferService) ensureRecipient(ctx context.Context, acct models.BankAccount) (string, error) {
	if acct.RecipientCode != nil && *acct.RecipientCode != "" {
		return *acct.RecipientCode, nil
	}
	code, err := s.gateway.CreateTransferRecipient(ctx, provider.Recipient{
		Name:          acct.AccountName,
		AccountNumber: acct.AccountNumber,
		BankCode:      acct.BankCode,
		Currency:      s.cfg.Currency,
	})
	if err != nil {
		return "", err
	}
	if acct.ID != "" {
		if err := s.accounts.SetRecipientCode(ctx, acct.ID, code); err != nil {
			slog.Warn("caching recipient code failed", "account", acct.ID, "err", err)
		}
	}
	return code, nil
}

func (s *TransferService) auditTransfer(entityID, action, details string) {
	var det map[string]any
	if details != "" {
		det = map[string]any{"message": details}
	}
	if err := s.audit.Create(models.AuditLog{
		EntityType: "transfer",
		EntityID:   &entityID,
		Action:     action,
		Details:    det,
	}); err != nil {
		slog.Warn("audit write failed", "entity", entityID, "err", err)
	}
}
