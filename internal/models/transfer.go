package models

import "time"

type TransferStatus string

const (
	TransferPending     TransferStatus = "pending"
	TransferSuccess     TransferStatus = "success"
	TransferFailed      TransferStatus = "failed"
	TransferOTPRequired TransferStatus = "otp_required"
)

// Transfer is one payout attempt against the processor's transfer API.
// pending -> success | failed | otp_required -> success | failed.
type Transfer struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	OwnerID       string         `json:"owner_id"`
	BankAccountID *string        `json:"bank_account_id,omitempty"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Status        TransferStatus `json:"status"`
	Kind          EntryKind      `json:"kind"` // withdrawal or payout
	LedgerRef     string         `json:"ledger_ref"`
	TransferCode  *string        `json:"transfer_code,omitempty"` // provider handle, needed to finalize OTP transfers
	RecipientCode *string        `json:"recipient_code,omitempty"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (s TransferStatus) Terminal() bool {
	return s == TransferSuccess || s == TransferFailed
}
