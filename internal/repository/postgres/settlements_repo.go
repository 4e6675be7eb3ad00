package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

type settlementsRepo struct{ pool *pgxpool.Pool }

const settlementCols = `id, order_id, merchant_id, order_amount, platform_fee, gateway_fee,
	settlement_amount, currency, status, schedule, bank_account_id, retry_count, next_retry_at,
	settle_after, settled_at, created_at, updated_at`

func scanSettlement(row pgx.Row) (models.Settlement, error) {
	var s models.Settlement
	err := row.Scan(&s.ID, &s.OrderID, &s.MerchantID, &s.OrderAmount, &s.PlatformFee, &s.GatewayFee,
		&s.SettlementAmount, &s.Currency, &s.Status, &s.Schedule, &s.BankAccountID, &s.RetryCount,
		&s.NextRetryAt, &s.SettleAfter, &s.SettledAt, &s.CreatedAt, &s.UpdatedAt)
	return s, mapErr(err)
}

func (r *settlementsRepo) Create(ctx context.Context, s models.Settlement) (models.Settlement, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return scanSettlement(r.pool.QueryRow(ctx, `
INSERT INTO settlements (
  id, order_id, merchant_id, order_amount, platform_fee, gateway_fee, settlement_amount,
  currency, status, schedule, bank_account_id, settle_after
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING `+settlementCols,
		s.ID, s.OrderID, s.MerchantID, s.OrderAmount, s.PlatformFee, s.GatewayFee,
		s.SettlementAmount, s.Currency, s.Status, s.Schedule, s.BankAccountID, s.SettleAfter,
	))
}

func (r *settlementsRepo) GetByOrderID(ctx context.Context, orderID string) (models.Settlement, error) {
	return scanSettlement(r.pool.QueryRow(ctx,
		`SELECT `+settlementCols+` FROM settlements WHERE order_id=$1`, orderID))
}

func (r *settlementsRepo) ListDue(ctx context.Context, now time.Time) ([]models.Settlement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+settlementCols+`
		   FROM settlements
		  WHERE status='pending'
		    AND schedule <> 'manual'
		    AND settle_after <= $1
		    AND (next_retry_at IS NULL OR next_retry_at <= $1)
		  ORDER BY settle_after ASC
		  LIMIT 200`,
		now,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectSettlements(rows)
}

func (r *settlementsRepo) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]models.Settlement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+settlementCols+`
		   FROM settlements
		  WHERE merchant_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		merchantID, limit, offset,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return collectSettlements(rows)
}

func collectSettlements(rows pgx.Rows) ([]models.Settlement, error) {
	var out []models.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *settlementsRepo) UnsettledTotal(ctx context.Context, merchantID string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(settlement_amount), 0)
		   FROM settlements
		  WHERE merchant_id=$1 AND status IN ('pending','processing')`,
		merchantID,
	).Scan(&total)
	return total, mapErr(err)
}

func (r *settlementsRepo) SetStatus(ctx context.Context, id string, status models.SettlementStatus, settledAt *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE settlements SET status=$2, settled_at=$3, updated_at=now() WHERE id=$1`,
		id, status, settledAt,
	)
	return mapErr(err)
}

func (r *settlementsRepo) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE settlements
		    SET status='pending', retry_count = retry_count + 1, next_retry_at=$2, updated_at=now()
		  WHERE id=$1`,
		id, nextRetryAt,
	)
	return mapErr(err)
}
