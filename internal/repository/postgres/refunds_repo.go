package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

type refundsRepo struct{ pool *pgxpool.Pool }

const refundCols = `id, order_id, kind, amount_requested, amount_approved, amount_refunded,
	platform_share, merchant_share, reason, provider_ref, platform_ledger_ref, merchant_ledger_ref,
	status, created_at, updated_at`

func scanRefund(row pgx.Row) (models.OrderRefund, error) {
	var f models.OrderRefund
	err := row.Scan(&f.ID, &f.OrderID, &f.Kind, &f.AmountRequested, &f.AmountApproved,
		&f.AmountRefunded, &f.PlatformShare, &f.MerchantShare, &f.Reason, &f.ProviderRef,
		&f.PlatformLedger, &f.MerchantLedger, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	return f, mapErr(err)
}

func (r *refundsRepo) Insert(ctx context.Context, tx pgx.Tx, f models.OrderRefund) (models.OrderRefund, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return scanRefund(tx.QueryRow(ctx, `
INSERT INTO order_refunds (
  id, order_id, kind, amount_requested, amount_approved, amount_refunded,
  platform_share, merchant_share, reason, provider_ref, platform_ledger_ref, merchant_ledger_ref, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING `+refundCols,
		f.ID, f.OrderID, f.Kind, f.AmountRequested, f.AmountApproved, f.AmountRefunded,
		f.PlatformShare, f.MerchantShare, f.Reason, f.ProviderRef, f.PlatformLedger,
		f.MerchantLedger, f.Status,
	))
}

func (r *refundsRepo) GetByID(ctx context.Context, id string) (models.OrderRefund, error) {
	return scanRefund(r.pool.QueryRow(ctx,
		`SELECT `+refundCols+` FROM order_refunds WHERE id=$1`, id))
}

func (r *refundsRepo) GetByProviderRef(ctx context.Context, providerRef string) (models.OrderRefund, error) {
	return scanRefund(r.pool.QueryRow(ctx,
		`SELECT `+refundCols+` FROM order_refunds WHERE provider_ref=$1`, providerRef))
}

func (r *refundsRepo) ListByOrder(ctx context.Context, orderID string) ([]models.OrderRefund, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+refundCols+`
		   FROM order_refunds
		  WHERE order_id=$1
		  ORDER BY created_at ASC`,
		orderID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.OrderRefund
	for rows.Next() {
		f, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *refundsRepo) SetStatus(ctx context.Context, id string, status models.RefundStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE order_refunds SET status=$2, updated_at=now() WHERE id=$1`,
		id, status,
	)
	return mapErr(err)
}

func (r *refundsRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status models.RefundStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE order_refunds SET status=$2, updated_at=now() WHERE id=$1`,
		id, status,
	)
	return mapErr(err)
}
