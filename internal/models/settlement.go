package models

import "time"

type SettlementStatus string

const (
	SettlementPending    SettlementStatus = "pending"
	SettlementProcessing SettlementStatus = "processing"
	SettlementCompleted  SettlementStatus = "completed"
	SettlementFailed     SettlementStatus = "failed"
	SettlementCancelled  SettlementStatus = "cancelled"
)

type SettlementSchedule string

const (
	ScheduleInstant SettlementSchedule = "instant"
	ScheduleDaily   SettlementSchedule = "daily"
	ScheduleWeekly  SettlementSchedule = "weekly"
	ScheduleMonthly SettlementSchedule = "monthly"
	ScheduleManual  SettlementSchedule = "manual"
)

// Settlement is the merchant's net share of one order:
// SettlementAmount = OrderAmount - PlatformFee - GatewayFee, never negative.
type Settlement struct {
	ID               string             `json:"id"`
	OrderID          string             `json:"order_id"`
	MerchantID       string             `json:"merchant_id"`
	OrderAmount      int64              `json:"order_amount"`
	PlatformFee      int64              `json:"platform_fee"`
	GatewayFee       int64              `json:"gateway_fee"`
	SettlementAmount int64              `json:"settlement_amount"`
	Currency         string             `json:"currency"`
	Status           SettlementStatus   `json:"status"`
	Schedule         SettlementSchedule `json:"schedule"`
	BankAccountID    *string            `json:"bank_account_id,omitempty"`
	RetryCount       int                `json:"retry_count"`
	NextRetryAt      *time.Time         `json:"next_retry_at,omitempty"`
	SettleAfter      time.Time          `json:"settle_after"` // hold period cutoff
	SettledAt        *time.Time         `json:"settled_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
