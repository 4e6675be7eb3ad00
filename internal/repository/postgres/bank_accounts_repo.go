package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellium/payments-backend/internal/models"
)

type bankAccountsRepo struct{ pool *pgxpool.Pool }

const bankAccountCols = `id, owner_id, bank_code, bank_name, account_number, account_name,
	recipient_code, is_default, created_at`

func scanBankAccount(row pgx.Row) (models.BankAccount, error) {
	var b models.BankAccount
	err := row.Scan(&b.ID, &b.OwnerID, &b.BankCode, &b.BankName, &b.AccountNumber,
		&b.AccountName, &b.RecipientCode, &b.IsDefault, &b.CreatedAt)
	return b, mapErr(err)
}

func (r *bankAccountsRepo) Create(ctx context.Context, b models.BankAccount) (models.BankAccount, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return scanBankAccount(r.pool.QueryRow(ctx, `
INSERT INTO bank_accounts (id, owner_id, bank_code, bank_name, account_number, account_name, recipient_code, is_default)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+bankAccountCols,
		b.ID, b.OwnerID, b.BankCode, b.BankName, b.AccountNumber, b.AccountName,
		b.RecipientCode, b.IsDefault,
	))
}

func (r *bankAccountsRepo) GetByIDAndOwner(ctx context.Context, id, ownerID string) (models.BankAccount, error) {
	return scanBankAccount(r.pool.QueryRow(ctx,
		`SELECT `+bankAccountCols+` FROM bank_accounts WHERE id=$1 AND owner_id=$2`, id, ownerID))
}

func (r *bankAccountsRepo) GetDefault(ctx context.Context, ownerID string) (models.BankAccount, error) {
	return scanBankAccount(r.pool.QueryRow(ctx,
		`SELECT `+bankAccountCols+`
		   FROM bank_accounts
		  WHERE owner_id=$1
		  ORDER BY is_default DESC, created_at ASC
		  LIMIT 1`,
		ownerID))
}

func (r *bankAccountsRepo) SetRecipientCode(ctx context.Context, id, recipientCode string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE bank_accounts SET recipient_code=$2 WHERE id=$1`,
		id, recipientCode,
	)
	return mapErr(err)
}

func (r *bankAccountsRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.BankAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bankAccountCols+`
		   FROM bank_accounts
		  WHERE owner_id=$1
		  ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.BankAccount
	for rows.Next() {
		b, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
