package models

import "time"

// Order and OrderItem are projections of the commerce collaborator. The
// payments core reads them and flips status/payment_status; everything else
// about orders lives outside this service.

type OrderStatus string

const (
	OrderPendingStatus OrderStatus = "pending"
	OrderProcessing    OrderStatus = "processing"
	OrderDelivered     OrderStatus = "delivered"
	OrderRefunded      OrderStatus = "refunded"
	OrderCancelled     OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid       PaymentStatus = "unpaid"
	PaymentPaid         PaymentStatus = "paid"
	PaymentRefundedFull PaymentStatus = "refunded"
)

type Order struct {
	ID            string        `json:"id"`
	Reference     string        `json:"reference"`
	CustomerID    string        `json:"customer_id"`
	MerchantID    string        `json:"merchant_id"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentRef    *string       `json:"payment_ref,omitempty"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
	Items         []OrderItem   `json:"items,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
