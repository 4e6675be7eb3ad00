package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/errs"
	repo "github.com/sellium/payments-backend/internal/repository"
)

type Repositories struct {
	Tx           repo.Tx
	Wallets      repo.Wallets
	Ledger       repo.LedgerEntries
	Transfers    repo.Transfers
	Settlements  repo.Settlements
	Refunds      repo.Refunds
	Orders       repo.Orders
	Inventory    repo.Inventory
	BankAccounts repo.BankAccounts
	AuditLogs    repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Tx:           &txRunner{pool},
		Wallets:      &walletsRepo{pool},
		Ledger:       &ledgerRepo{pool},
		Transfers:    &transfersRepo{pool},
		Settlements:  &settlementsRepo{pool},
		Refunds:      &refundsRepo{pool},
		Orders:       &ordersRepo{pool},
		Inventory:    &inventoryRepo{pool},
		BankAccounts: &bankAccountsRepo{pool},
		AuditLogs:    &auditLogsRepo{pool},
	}
}

type txRunner struct{ pool *pgxpool.Pool }

func (r *txRunner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// mapErr translates driver errors into the domain taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errs.ErrDuplicate
	}
	return err
}
