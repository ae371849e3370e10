package command

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/domain/order"
	"github.com/example/eventshop/internal/domain/product"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/payment"
	"github.com/example/eventshop/internal/projection"
)

// DefaultPaymentTimeout bounds every payment gateway round-trip. Deadline
// expiry surfaces as PAYMENT_TIMEOUT.
const DefaultPaymentTimeout = 30 * time.Second

const convenienceStoreCodeTTL = 72 * time.Hour

// Notifier is the mail enqueue surface the handler fires after the write is
// durable.
type Notifier interface {
	EnqueueOrderConfirmation(ctx context.Context, params email.OrderConfirmationParams) error
	EnqueueRefundNotification(ctx context.Context, params email.RefundNotificationParams) error
}

type Handler struct {
	products       *product.Service
	orders         *order.Service
	projector      *projection.Projector
	gateway        payment.Gateway
	notifier       Notifier
	readStore      store.ReadStore
	paymentTimeout time.Duration
}

func NewHandler(
	products *product.Service,
	orders *order.Service,
	projector *projection.Projector,
	gateway payment.Gateway,
	notifier Notifier,
	readStore store.ReadStore,
) *Handler {
	return &Handler{
		products:       products,
		orders:         orders,
		projector:      projector,
		gateway:        gateway,
		notifier:       notifier,
		readStore:      readStore,
		paymentTimeout: DefaultPaymentTimeout,
	}
}

// ============================================
// Orders
// ============================================

// Checkout runs the full order placement: append OrderCreated, take payment,
// project the order events, decrement stock per item, enqueue the
// confirmation mail.
func (h *Handler) Checkout(ctx context.Context, cmd Checkout) (*order.Order, error) {
	customerEmail, customerName, err := h.resolveCustomer(ctx, cmd)
	if err != nil {
		return nil, err
	}

	items := make([]order.Item, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = order.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	o, events, err := h.orders.Create(ctx, order.CreateParams{
		CustomerID:      cmd.CustomerID,
		Items:           items,
		ShippingAddress: cmd.ShippingAddress,
		PaymentMethod:   cmd.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	payCtx, cancel := context.WithTimeout(ctx, h.paymentTimeout)
	defer cancel()

	switch o.PaymentMethod {
	case order.PaymentCreditCard:
		if cmd.CreditCard == nil {
			return nil, apperr.New(apperr.CodeValidationError, "credit card details are required").WithFields("creditCard")
		}
		transactionID, err := h.gateway.ChargeCreditCard(payCtx, o.Total, *cmd.CreditCard, o.ID)
		if err != nil {
			return nil, translatePaymentError(err)
		}
		var paymentEvents []store.Event
		o, paymentEvents, err = h.orders.RecordPayment(ctx, o.ID, transactionID)
		if err != nil {
			return nil, err
		}
		events = append(events, paymentEvents...)

	case order.PaymentConvenienceStore:
		expiresAt := time.Now().UTC().Add(convenienceStoreCodeTTL)
		code, err := h.gateway.IssueConvenienceStorePayment(payCtx, o.Total, o.ID, customerEmail, customerName, expiresAt)
		if err != nil {
			return nil, translatePaymentError(err)
		}
		var issueEvents []store.Event
		o, issueEvents, err = h.orders.IssueConvenienceStoreCode(ctx, o.ID, code, expiresAt)
		if err != nil {
			return nil, err
		}
		events = append(events, issueEvents...)
	}

	if err := h.projector.ApplyAll(ctx, events); err != nil {
		return nil, err
	}

	for _, item := range cmd.Items {
		_, stockEvents, err := h.products.DecreaseStock(ctx, item.ProductID, item.Quantity, o.ID)
		if err != nil {
			return nil, err
		}
		if err := h.projector.ApplyAll(ctx, stockEvents); err != nil {
			return nil, err
		}
	}

	confirmation := email.OrderConfirmationParams{
		To:          customerEmail,
		OrderID:     o.ID,
		Items:       emailItems(cmd.Items),
		Subtotal:    o.Subtotal,
		ShippingFee: o.ShippingFee,
		Total:       o.Total,
		PaymentCode: o.PaymentCode,
	}
	if err := h.notifier.EnqueueOrderConfirmation(ctx, confirmation); err != nil {
		log.Printf("[Command] failed to enqueue confirmation for order %s: %v", o.ID, err)
	}

	return o, nil
}

// CancelOrder cancels the order, restocks its items and voids an outstanding
// konbini voucher.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	o, events, err := h.orders.Cancel(ctx, cmd.OrderID, cmd.Reason)
	if err != nil {
		return nil, err
	}
	if err := h.projector.ApplyAll(ctx, events); err != nil {
		return nil, err
	}

	for _, item := range o.Items {
		_, stockEvents, err := h.products.IncreaseStock(ctx, item.ProductID, item.Quantity, o.ID)
		if err != nil {
			// A product deleted after purchase cannot be restocked.
			log.Printf("[Command] restock of %s for cancelled order %s failed: %v", item.ProductID, o.ID, err)
			continue
		}
		if err := h.projector.ApplyAll(ctx, stockEvents); err != nil {
			return nil, err
		}
	}

	if o.PaymentMethod == order.PaymentConvenienceStore && o.PaymentCode != "" {
		if err := h.gateway.VoidConvenienceStorePayment(ctx, o.PaymentCode); err != nil {
			log.Printf("[Command] failed to void konbini voucher for order %s: %v", o.ID, err)
		}
	}

	return o, nil
}

// RefundOrder refunds a cancelled order: the gateway is charged first, under
// the same preconditions the append enforces, then RefundCompleted is
// recorded and the customer notified.
func (h *Handler) RefundOrder(ctx context.Context, cmd RefundOrder) (*order.Order, error) {
	o, err := h.orders.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := o.CanRefund(); err != nil {
		return nil, err
	}

	if o.PaymentMethod == order.PaymentCreditCard {
		payCtx, cancel := context.WithTimeout(ctx, h.paymentTimeout)
		defer cancel()
		if err := h.gateway.Refund(payCtx, o.TransactionID, o.Total); err != nil {
			return nil, translatePaymentError(err)
		}
	}

	o, events, err := h.orders.Refund(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := h.projector.ApplyAll(ctx, events); err != nil {
		return nil, err
	}

	if customer, found, err := h.readStore.GetUserByID(ctx, o.CustomerID); err == nil && found {
		notification := email.RefundNotificationParams{
			To:      customer.Email,
			OrderID: o.ID,
			Amount:  o.Total,
		}
		if err := h.notifier.EnqueueRefundNotification(ctx, notification); err != nil {
			log.Printf("[Command] failed to enqueue refund notification for order %s: %v", o.ID, err)
		}
	}

	return o, nil
}

func (h *Handler) ShipOrder(ctx context.Context, cmd ShipOrder) (*order.Order, error) {
	o, events, err := h.orders.Ship(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return o, h.projector.ApplyAll(ctx, events)
}

func (h *Handler) CompleteOrder(ctx context.Context, cmd CompleteOrder) (*order.Order, error) {
	o, events, err := h.orders.Complete(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return o, h.projector.ApplyAll(ctx, events)
}

// ============================================
// Products
// ============================================

func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	p, events, err := h.products.Create(ctx, product.CreateParams{
		Name:        cmd.Name,
		Description: cmd.Description,
		Price:       cmd.Price,
		CategoryID:  cmd.CategoryID,
		Stock:       cmd.Stock,
		Status:      cmd.Status,
	})
	if err != nil {
		return nil, err
	}
	return p, h.projector.ApplyAll(ctx, events)
}

func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) (*product.Product, error) {
	p, events, err := h.products.Update(ctx, cmd.ProductID, cmd.Changes)
	if err != nil {
		return nil, err
	}
	return p, h.projector.ApplyAll(ctx, events)
}

func (h *Handler) DeleteProduct(ctx context.Context, cmd DeleteProduct) error {
	_, events, err := h.products.Delete(ctx, cmd.ProductID)
	if err != nil {
		return err
	}
	return h.projector.ApplyAll(ctx, events)
}

func (h *Handler) UpdateStock(ctx context.Context, cmd UpdateStock) (*product.Product, error) {
	p, events, err := h.products.UpdateStock(ctx, cmd.ProductID, cmd.Quantity)
	if err != nil {
		return nil, err
	}
	return p, h.projector.ApplyAll(ctx, events)
}

func (h *Handler) AssociateProductImage(ctx context.Context, cmd AssociateProductImage) (*product.Product, error) {
	p, events, err := h.products.AssociateImage(ctx, cmd.ProductID, cmd.ImageURL)
	if err != nil {
		return nil, err
	}
	return p, h.projector.ApplyAll(ctx, events)
}

// resolveCustomer fills email and name from the users view when the caller
// did not supply them.
func (h *Handler) resolveCustomer(ctx context.Context, cmd Checkout) (string, string, error) {
	if cmd.CustomerEmail != "" && cmd.CustomerName != "" {
		return cmd.CustomerEmail, cmd.CustomerName, nil
	}
	customer, found, err := h.readStore.GetUserByID(ctx, cmd.CustomerID)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", apperr.New(apperr.CodeUserNotFound, "user not found")
	}
	customerEmail := cmd.CustomerEmail
	if customerEmail == "" {
		customerEmail = customer.Email
	}
	customerName := cmd.CustomerName
	if customerName == "" {
		customerName = customer.Name
	}
	return customerEmail, customerName, nil
}

func emailItems(items []CartItem) []email.OrderItem {
	out := make([]email.OrderItem, len(items))
	for i, item := range items {
		out[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

func translatePaymentError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(err, apperr.CodePaymentTimeout, "payment processing timed out")
	}
	return err
}
