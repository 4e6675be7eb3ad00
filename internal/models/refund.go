package models

import "time"

type RefundKind string

const (
	RefundFull    RefundKind = "full"
	RefundPartial RefundKind = "partial"
)

type RefundStatus string

const (
	RefundRequested  RefundStatus = "requested"
	RefundApproved   RefundStatus = "approved"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
	RefundRejected   RefundStatus = "rejected"
)

// OrderRefund records one refund against an order. Across all completed
// refunds of an order, sum(AmountRefunded) never exceeds the order total.
type OrderRefund struct {
	ID              string       `json:"id"`
	OrderID         string       `json:"order_id"`
	Kind            RefundKind   `json:"kind"`
	AmountRequested int64        `json:"amount_requested"`
	AmountApproved  int64        `json:"amount_approved"`
	AmountRefunded  int64        `json:"amount_refunded"`
	PlatformShare   int64        `json:"platform_share"`
	MerchantShare   int64        `json:"merchant_share"`
	Reason          string       `json:"reason"`
	ProviderRef     *string      `json:"provider_ref,omitempty"`
	PlatformLedger  string       `json:"platform_ledger_ref"`
	MerchantLedger  string       `json:"merchant_ledger_ref"`
	Status          RefundStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (s RefundStatus) Terminal() bool {
	return s == RefundCompleted || s == RefundFailed || s == RefundRejected
}
