package models

import "time"

type WalletStatus string

const (
	WalletPending   WalletStatus = "pending"
	WalletActive    WalletStatus = "active"
	WalletInactive  WalletStatus = "inactive"
	WalletSuspended WalletStatus = "suspended"
	WalletClosed    WalletStatus = "closed"
)

// Wallet caches the owner's position derived from the ledger. The invariant
// the ledger service maintains under a row lock:
// AvailableBalance == sum(success credits) - sum(success debits).
type Wallet struct {
	ID               string       `json:"id"`
	OwnerID          string       `json:"owner_id"`
	AvailableBalance int64        `json:"available_balance"`
	PendingBalance   int64        `json:"pending_balance"`
	LedgerBalance    int64        `json:"ledger_balance"`
	Currency         string       `json:"currency"`
	Status           WalletStatus `json:"status"`

	VirtualAccountNumber *string `json:"virtual_account_number,omitempty"`
	VirtualAccountBank   *string `json:"virtual_account_bank,omitempty"`
	VirtualAccountName   *string `json:"virtual_account_name,omitempty"`
	ProviderCustomerRef  *string `json:"provider_customer_ref,omitempty"`

	PINHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
