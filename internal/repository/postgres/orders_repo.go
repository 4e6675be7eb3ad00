package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

// ordersRepo and inventoryRepo are the thin collaborator surfaces: the
// payments core only reads orders and flips their statuses, and restocks
// quantities after full refunds.

type ordersRepo struct{ pool *pgxpool.Pool }

const orderCols = `id, reference, customer_id, merchant_id, total, currency, status,
	payment_status, payment_ref, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Reference, &o.CustomerID, &o.MerchantID, &o.Total, &o.Currency,
		&o.Status, &o.PaymentStatus, &o.PaymentRef, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	return o, mapErr(err)
}

func (r *ordersRepo) GetWithItems(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return models.Order{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price
		   FROM order_items WHERE order_id=$1 ORDER BY id`,
		id,
	)
	if err != nil {
		return models.Order{}, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return models.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *ordersRepo) GetByReference(ctx context.Context, reference string) (models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE reference=$1`, reference))
}

func (r *ordersRepo) SetPaymentStatus(ctx context.Context, id string, ps models.PaymentStatus, providerRef string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status=$2, payment_ref=$3, updated_at=now() WHERE id=$1`,
		id, ps, providerRef,
	)
	return mapErr(err)
}

func (r *ordersRepo) SetStatus(ctx context.Context, id string, status models.OrderStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		id, status,
	)
	return mapErr(err)
}

func (r *ordersRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status models.OrderStatus, ps models.PaymentStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, payment_status=$3, updated_at=now() WHERE id=$1`,
		id, status, ps,
	)
	return mapErr(err)
}

type inventoryRepo struct{ pool *pgxpool.Pool }

func (r *inventoryRepo) IncrementStock(ctx context.Context, productID string, qty int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at=now() WHERE id=$1`,
		productID, qty,
	)
	return mapErr(err)
}
