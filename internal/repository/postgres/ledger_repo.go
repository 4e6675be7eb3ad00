package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

type ledgerRepo struct{ pool *pgxpool.Pool }

const entryCols = `id, reference, owner_id, order_id, kind, flow, status, amount, fee, net_amount,
	currency, balance_before, balance_after, provider_ref, metadata, created_at, updated_at`

func scanEntry(row pgx.Row) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.Reference, &e.OwnerID, &e.OrderID, &e.Kind, &e.Flow, &e.Status,
		&e.Amount, &e.Fee, &e.NetAmount, &e.Currency, &e.BalanceBefore, &e.BalanceAfter,
		&e.ProviderRef, &e.Metadata, &e.CreatedAt, &e.UpdatedAt)
	return e, mapErr(err)
}

func (r *ledgerRepo) Insert(ctx context.Context, tx pgx.Tx, e models.LedgerEntry) (models.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return scanEntry(tx.QueryRow(ctx, `
INSERT INTO ledger_entries (
  id, reference, owner_id, order_id, kind, flow, status, amount, fee, net_amount,
  currency, balance_before, balance_after, provider_ref, metadata
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING `+entryCols,
		e.ID, e.Reference, e.OwnerID, e.OrderID, e.Kind, e.Flow, e.Status, e.Amount, e.Fee,
		e.NetAmount, e.Currency, e.BalanceBefore, e.BalanceAfter, e.ProviderRef, e.Metadata,
	))
}

func (r *ledgerRepo) GetByID(ctx context.Context, id string) (models.LedgerEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM ledger_entries WHERE id=$1`, id))
}

func (r *ledgerRepo) GetByReference(ctx context.Context, reference string) (models.LedgerEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM ledger_entries WHERE reference=$1`, reference))
}

func (r *ledgerRepo) MarkReversed(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx,
		`UPDATE ledger_entries SET status='reversed', updated_at=now() WHERE id=$1 AND status='success'`,
		id,
	)
	return mapErr(err)
}

func (r *ledgerRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryCols+`
		   FROM ledger_entries
		  WHERE owner_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
