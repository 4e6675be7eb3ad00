package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

type transfersRepo struct{ pool *pgxpool.Pool }

const transferCols = `id, reference, owner_id, bank_account_id, amount, currency, status, kind,
	ledger_ref, transfer_code, recipient_code, failure_reason, created_at, updated_at`

func scanTransfer(row pgx.Row) (models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.Reference, &t.OwnerID, &t.BankAccountID, &t.Amount, &t.Currency,
		&t.Status, &t.Kind, &t.LedgerRef, &t.TransferCode, &t.RecipientCode, &t.FailureReason,
		&t.CreatedAt, &t.UpdatedAt)
	return t, mapErr(err)
}

func (r *transfersRepo) Create(ctx context.Context, t models.Transfer) (models.Transfer, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return scanTransfer(r.pool.QueryRow(ctx, `
INSERT INTO transfers (
  id, reference, owner_id, bank_account_id, amount, currency, status, kind,
  ledger_ref, transfer_code, recipient_code, failure_reason
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING `+transferCols,
		t.ID, t.Reference, t.OwnerID, t.BankAccountID, t.Amount, t.Currency, t.Status, t.Kind,
		t.LedgerRef, t.TransferCode, t.RecipientCode, t.FailureReason,
	))
}

func (r *transfersRepo) GetByReference(ctx context.Context, reference string) (models.Transfer, error) {
	return scanTransfer(r.pool.QueryRow(ctx,
		`SELECT `+transferCols+` FROM transfers WHERE reference=$1`, reference))
}

func (r *transfersRepo) SetStatus(ctx context.Context, id string, status models.TransferStatus, failureReason *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transfers SET status=$2, failure_reason=$3, updated_at=now() WHERE id=$1`,
		id, status, failureReason,
	)
	return mapErr(err)
}

func (r *transfersRepo) SetTransferCode(ctx context.Context, id, transferCode string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transfers SET transfer_code=$2, updated_at=now() WHERE id=$1`,
		id, transferCode,
	)
	return mapErr(err)
}

func (r *transfersRepo) ListStale(ctx context.Context, statuses []models.TransferStatus, before time.Time) ([]models.Transfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transferCols+`
		   FROM transfers
		  WHERE status = ANY($1) AND updated_at < $2
		  ORDER BY updated_at ASC
		  LIMIT 200`,
		statuses, before,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transfersRepo) ListFailedSince(ctx context.Context, since time.Time) ([]models.Transfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transferCols+`
		   FROM transfers
		  WHERE status = 'failed' AND updated_at >= $1
		  ORDER BY updated_at ASC
		  LIMIT 200`,
		since,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
