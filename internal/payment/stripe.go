package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/paymentmethod"
	"github.com/stripe/stripe-go/v78/refund"

	"github.com/example/eventshop/internal/apperr"
)

// StripeGateway implements Gateway on Stripe: PaymentIntents for cards,
// Konbini for convenience-store vouchers, the Refunds API for refunds.
// The konbini payment code doubles as the PaymentIntent id so voiding is a
// plain intent cancel.
type StripeGateway struct{}

func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

func (g *StripeGateway) ChargeCreditCard(ctx context.Context, amount int64, card CreditCard, orderID string) (string, error) {
	pm, err := paymentmethod.New(&stripe.PaymentMethodParams{
		Params: stripe.Params{Context: ctx},
		Type:   stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(card.ExpMonth),
			ExpYear:  stripe.Int64(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
	})
	if err != nil {
		return "", translateStripeError(err)
	}

	intent, err := paymentintent.New(&stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(string(stripe.CurrencyJPY)),
		PaymentMethod: stripe.String(pm.ID),
		Confirm:       stripe.Bool(true),
		Metadata:      map[string]string{"order_id": orderID},
	})
	if err != nil {
		return "", translateStripeError(err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return "", apperr.Newf(apperr.CodePaymentDeclined, "payment not completed (status %s)", intent.Status)
	}

	log.Printf("[Payment] charged order %s: intent %s", orderID, intent.ID)
	return intent.ID, nil
}

func (g *StripeGateway) IssueConvenienceStorePayment(ctx context.Context, amount int64, orderID, customerEmail, customerName string, expiresAt time.Time) (string, error) {
	intent, err := paymentintent.New(&stripe.PaymentIntentParams{
		Params:             stripe.Params{Context: ctx},
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(string(stripe.CurrencyJPY)),
		PaymentMethodTypes: stripe.StringSlice([]string{"konbini"}),
		PaymentMethodData: &stripe.PaymentIntentPaymentMethodDataParams{
			Type: stripe.String("konbini"),
			BillingDetails: &stripe.PaymentIntentPaymentMethodDataBillingDetailsParams{
				Email: stripe.String(customerEmail),
				Name:  stripe.String(customerName),
			},
		},
		PaymentMethodOptions: &stripe.PaymentIntentPaymentMethodOptionsParams{
			Konbini: &stripe.PaymentIntentPaymentMethodOptionsKonbiniParams{
				ExpiresAt: stripe.Int64(expiresAt.Unix()),
			},
		},
		Confirm:  stripe.Bool(true),
		Metadata: map[string]string{"order_id": orderID},
	})
	if err != nil {
		return "", translateStripeError(err)
	}

	log.Printf("[Payment] issued konbini voucher for order %s: intent %s", orderID, intent.ID)
	return intent.ID, nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amount int64) error {
	_, err := refund.New(&stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(amount),
	})
	if err != nil {
		return translateStripeError(err)
	}
	log.Printf("[Payment] refunded intent %s: %d", transactionID, amount)
	return nil
}

func (g *StripeGateway) VoidConvenienceStorePayment(ctx context.Context, paymentCode string) error {
	_, err := paymentintent.Cancel(paymentCode, &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return translateStripeError(err)
	}
	log.Printf("[Payment] voided konbini voucher %s", paymentCode)
	return nil
}

// translateStripeError keeps the taxonomy stable: declines map to
// PAYMENT_DECLINED, context deadlines pass through for the caller's
// PAYMENT_TIMEOUT mapping, everything else is a plain error.
func translateStripeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodeCardDeclined ||
			stripeErr.Code == stripe.ErrorCodeExpiredCard ||
			stripeErr.Code == stripe.ErrorCodeIncorrectCVC {
			return apperr.New(apperr.CodePaymentDeclined, "payment was declined")
		}
		return fmt.Errorf("stripe: %s", stripeErr.Code)
	}
	return err
}
