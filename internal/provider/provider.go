// Package provider defines the boundary to the external payment processor.
// Exactly one Gateway implementation is active per deployment, chosen by
// configuration; callers never branch on provider identity. Optional
// capabilities return errs.ErrUnsupported instead of silently no-op-ing.
package provider

import "context"

type TransferState string

const (
	TransferStateSuccess TransferState = "success"
	TransferStatePending TransferState = "pending"
	TransferStateOTP     TransferState = "otp"
	TransferStateFailed  TransferState = "failed"
)

type VirtualAccountRequest struct {
	OwnerID       string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	PreferredBank string
}

type VirtualAccount struct {
	CustomerRef   string
	AccountNumber string
	AccountName   string
	BankName      string
	Assigned      bool // false when assignment arrives later via webhook
}

type PaymentRequest struct {
	Reference string
	Email     string
	Amount    int64 // minor units
	Currency  string
	Metadata  map[string]any
}

type PaymentSession struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type PaymentStatus struct {
	Reference  string
	Paid       bool
	Amount     int64
	Fees       int64
	Channel    string
	ProviderID string
}

type Recipient struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

type TransferRequest struct {
	Reference     string
	RecipientCode string
	Amount        int64
	Currency      string
	Reason        string
}

type TransferResult struct {
	State        TransferState
	TransferCode string // provider handle, required to finalize OTP transfers
	Reference    string
	FailureText  string
}

type RefundRequest struct {
	TransactionRef string // provider reference of the original charge
	Amount         int64  // minor units; 0 means full
	Reason         string
}

type RefundResult struct {
	RefundRef string
	Status    string
}

type ResolvedAccount struct {
	AccountNumber string
	AccountName   string
	BankID        int
}

type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type Gateway interface {
	Name() string

	CreateVirtualAccount(ctx context.Context, req VirtualAccountRequest) (VirtualAccount, error)
	InitializePayment(ctx context.Context, req PaymentRequest) (PaymentSession, error)
	VerifyPayment(ctx context.Context, reference string) (PaymentStatus, error)

	CreateTransferRecipient(ctx context.Context, r Recipient) (string, error)
	TransferToBank(ctx context.Context, req TransferRequest) (TransferResult, error)
	FinalizeTransfer(ctx context.Context, transferCode, otp string) (TransferResult, error)
	FetchTransfer(ctx context.Context, reference string) (TransferResult, error)

	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)

	ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (ResolvedAccount, error)
	ListBanks(ctx context.Context) ([]Bank, error)
	FetchBalance(ctx context.Context) (int64, string, error)

	// WalletTransfer moves funds between provider-side wallets. Providers
	// without the capability return errs.ErrUnsupported.
	WalletTransfer(ctx context.Context, fromRef, toRef string, amount int64) error

	// ValidateSignature authenticates a webhook body before it is parsed.
	ValidateSignature(signature string, body []byte) error
}
