package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sellium/payments-backend/internal/models"
)

// Tx runs fn inside a single database transaction. Multi-step ledger
// mutations (debit+save, refund's dual debit, transfer reversal) always go
// through it; the database is the serialization point.
type Tx interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type Wallets interface {
	GetOrCreate(ctx context.Context, ownerID, currency string) (models.Wallet, error)
	Get(ctx context.Context, ownerID string) (models.Wallet, error)
	GetByProviderCustomer(ctx context.Context, customerRef string) (models.Wallet, error)

	// GetForUpdate takes the row lock that serializes balance
	// read-modify-write. Must be called inside a Tx.
	GetForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (models.Wallet, error)
	SetBalance(ctx context.Context, tx pgx.Tx, ownerID string, available int64) error

	AttachVirtualAccount(ctx context.Context, ownerID, accountNumber, accountName, bankName string) error
	SetProviderCustomer(ctx context.Context, ownerID, customerRef string) error
	SetPINHash(ctx context.Context, ownerID, pinHash string) error
}

type LedgerEntries interface {
	Insert(ctx context.Context, tx pgx.Tx, e models.LedgerEntry) (models.LedgerEntry, error)
	GetByID(ctx context.Context, id string) (models.LedgerEntry, error)
	GetByReference(ctx context.Context, reference string) (models.LedgerEntry, error)
	MarkReversed(ctx context.Context, tx pgx.Tx, id string) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.LedgerEntry, error)
}

type Transfers interface {
	Create(ctx context.Context, t models.Transfer) (models.Transfer, error)
	GetByReference(ctx context.Context, reference string) (models.Transfer, error)
	SetStatus(ctx context.Context, id string, status models.TransferStatus, failureReason *string) error
	SetTransferCode(ctx context.Context, id, transferCode string) error
	ListStale(ctx context.Context, statuses []models.TransferStatus, before time.Time) ([]models.Transfer, error)
	ListFailedSince(ctx context.Context, since time.Time) ([]models.Transfer, error)
}

type Settlements interface {
	Create(ctx context.Context, s models.Settlement) (models.Settlement, error)
	GetByOrderID(ctx context.Context, orderID string) (models.Settlement, error)
	ListDue(ctx context.Context, now time.Time) ([]models.Settlement, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.Settlement, error)
	UnsettledTotal(ctx context.Context, merchantID string) (int64, error)
	SetStatus(ctx context.Context, id string, status models.SettlementStatus, settledAt *time.Time) error
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error
}

type Refunds interface {
	Insert(ctx context.Context, tx pgx.Tx, r models.OrderRefund) (models.OrderRefund, error)
	GetByID(ctx context.Context, id string) (models.OrderRefund, error)
	GetByProviderRef(ctx context.Context, providerRef string) (models.OrderRefund, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.OrderRefund, error)
	SetStatus(ctx context.Context, id string, status models.RefundStatus) error
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status models.RefundStatus) error
}

// Orders is the commerce collaborator surface: read with items, flip
// status / payment status. Nothing else about orders belongs here.
type Orders interface {
	GetWithItems(ctx context.Context, id string) (models.Order, error)
	GetByReference(ctx context.Context, reference string) (models.Order, error)
	SetPaymentStatus(ctx context.Context, id string, ps models.PaymentStatus, providerRef string) error
	SetStatus(ctx context.Context, id string, status models.OrderStatus) error
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status models.OrderStatus, ps models.PaymentStatus) error
}

// Inventory is the stock collaborator: restocks are best-effort.
type Inventory interface {
	IncrementStock(ctx context.Context, productID string, qty int) error
}

type BankAccounts interface {
	Create(ctx context.Context, b models.BankAccount) (models.BankAccount, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (models.BankAccount, error)
	GetDefault(ctx context.Context, ownerID string) (models.BankAccount, error)
	SetRecipientCode(ctx context.Context, id, recipientCode string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.BankAccount, error)
}

type AuditLogs interface {
	Create(l models.AuditLog) error
}
