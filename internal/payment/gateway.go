// Package payment abstracts the payment provider behind a small gateway
// interface. Card data passes through in memory only; implementations must
// never log or persist it.
package payment

import (
	"context"
	"time"
)

// CreditCard is the raw card input from checkout. It is consumed by the
// gateway call and discarded; only the transaction id survives.
type CreditCard struct {
	Number     string
	ExpMonth   int64
	ExpYear    int64
	CVC        string
	HolderName string
}

// Gateway is the payment provider contract. Amounts are integer minor
// units (JPY, zero-decimal).
type Gateway interface {
	// ChargeCreditCard charges the card and returns the provider
	// transaction id. Declines surface as PAYMENT_DECLINED.
	ChargeCreditCard(ctx context.Context, amount int64, card CreditCard, orderID string) (string, error)

	// IssueConvenienceStorePayment creates a pay-at-store voucher and
	// returns the payment code the customer presents at the register.
	IssueConvenienceStorePayment(ctx context.Context, amount int64, orderID, customerEmail, customerName string, expiresAt time.Time) (string, error)

	// Refund returns funds for a prior charge.
	Refund(ctx context.Context, transactionID string, amount int64) error

	// VoidConvenienceStorePayment invalidates an unpaid voucher.
	VoidConvenienceStorePayment(ctx context.Context, paymentCode string) error
}
