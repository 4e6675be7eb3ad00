package models

import "time"

type BankAccount struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	BankCode      string    `json:"bank_code"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	RecipientCode *string   `json:"recipient_code,omitempty"` // provider transfer-recipient handle
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}
