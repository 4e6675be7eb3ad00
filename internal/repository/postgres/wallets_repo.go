package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

type walletsRepo struct{ pool *pgxpool.Pool }

const walletCols = `id, owner_id, available_balance, pending_balance, ledger_balance, currency, status,
	virtual_account_number, virtual_account_bank, virtual_account_name, provider_customer_ref, pin_hash,
	created_at, updated_at`

func scanWallet(row pgx.Row) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.AvailableBalance, &w.PendingBalance, &w.LedgerBalance,
		&w.Currency, &w.Status, &w.VirtualAccountNumber, &w.VirtualAccountBank, &w.VirtualAccountName,
		&w.ProviderCustomerRef, &w.PINHash, &w.CreatedAt, &w.UpdatedAt)
	return w, mapErr(err)
}

func (r *walletsRepo) GetOrCreate(ctx context.Context, ownerID, currency string) (models.Wallet, error) {
	if w, err := r.Get(ctx, ownerID); err == nil {
		return w, nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO wallets(id, owner_id, currency, status)
		 VALUES($1, $2, $3, 'pending')
		 ON CONFLICT (owner_id) DO NOTHING`,
		uuid.NewString(), ownerID, currency,
	)
	if err != nil {
		return models.Wallet{}, mapErr(err)
	}
	return r.Get(ctx, ownerID)
}

func (r *walletsRepo) Get(ctx context.Context, ownerID string) (models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE owner_id=$1`, ownerID))
}

func (r *walletsRepo) GetByProviderCustomer(ctx context.Context, customerRef string) (models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE provider_customer_ref=$1`, customerRef))
}

// GetForUpdate locks the wallet row until the surrounding transaction
// commits, so concurrent debits cannot interleave their balance
// read and write.
func (r *walletsRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (models.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE owner_id=$1 FOR UPDATE`, ownerID))
}

func (r *walletsRepo) SetBalance(ctx context.Context, tx pgx.Tx, ownerID string, available int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE wallets
		    SET available_balance=$2, ledger_balance=$2, updated_at=now()
		  WHERE owner_id=$1`,
		ownerID, available,
	)
	return mapErr(err)
}

func (r *walletsRepo) AttachVirtualAccount(ctx context.Context, ownerID, accountNumber, accountName, bankName string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE wallets
		    SET virtual_account_number=$2, virtual_account_name=$3, virtual_account_bank=$4,
		        status='active', updated_at=now()
		  WHERE owner_id=$1`,
		ownerID, accountNumber, accountName, bankName,
	)
	return mapErr(err)
}

func (r *walletsRepo) SetProviderCustomer(ctx context.Context, ownerID, customerRef string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE wallets SET provider_customer_ref=$2, updated_at=now() WHERE owner_id=$1`,
		ownerID, customerRef,
	)
	return mapErr(err)
}

func (r *walletsRepo) SetPINHash(ctx context.Context, ownerID, pinHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE wallets SET pin_hash=$2, updated_at=now() WHERE owner_id=$1`,
		ownerID, pinHash,
	)
	return mapErr(err)
}
