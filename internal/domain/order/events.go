package order

import "time"

const (
	EventOrderCreated                  = "OrderCreated"
	EventPaymentCompleted              = "PaymentCompleted"
	EventConvenienceStorePaymentIssued = "ConvenienceStorePaymentIssued"
	EventOrderShipped                  = "OrderShipped"
	EventOrderCompleted                = "OrderCompleted"
	EventOrderCancelled                = "OrderCancelled"
	EventRefundCompleted               = "RefundCompleted"
)

type OrderCreated struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	Items           []Item          `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	Subtotal        int64           `json:"subtotal"`
	ShippingFee     int64           `json:"shipping_fee"`
	Total           int64           `json:"total"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PaymentCompleted records only the gateway transaction id. Card data never
// enters the log.
type PaymentCompleted struct {
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type ConvenienceStorePaymentIssued struct {
	OrderID     string    `json:"order_id"`
	PaymentCode string    `json:"payment_code"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderShipped struct {
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderCompleted struct {
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderCancelled struct {
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type RefundCompleted struct {
	OrderID   string    `json:"order_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
