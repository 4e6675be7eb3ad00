package models

import "time"

type EntryKind string

const (
	KindOrderPayment  EntryKind = "order_payment"
	KindSettlement    EntryKind = "settlement"
	KindWithdrawal    EntryKind = "withdrawal"
	KindRefund        EntryKind = "refund"
	KindWalletFunding EntryKind = "wallet_funding"
	KindFee           EntryKind = "fee"
	KindPayout        EntryKind = "payout"
)

type EntryFlow string

const (
	FlowCredit EntryFlow = "credit"
	FlowDebit  EntryFlow = "debit"
)

type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntrySuccess  EntryStatus = "success"
	EntryFailed   EntryStatus = "failed"
	EntryReversed EntryStatus = "reversed"
)

// LedgerEntry is one immutable money movement. History is never edited:
// undoing an entry means appending a new one with the opposite flow.
type LedgerEntry struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	OwnerID       string         `json:"owner_id"`
	OrderID       *string        `json:"order_id,omitempty"`
	Kind          EntryKind      `json:"kind"`
	Flow          EntryFlow      `json:"flow"`
	Status        EntryStatus    `json:"status"`
	Amount        int64          `json:"amount"`
	Fee           int64          `json:"fee"`
	NetAmount     int64          `json:"net_amount"`
	Currency      string         `json:"currency"`
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	ProviderRef   *string        `json:"provider_ref,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (e EntryStatus) Terminal() bool {
	return e == EntrySuccess || e == EntryFailed || e == EntryReversed
}
