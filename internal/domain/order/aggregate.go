package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/domain/aggregate"
	"github.com/example/eventshop/internal/infrastructure/store"
)

type Status string

const (
	StatusAccepted  Status = "ACCEPTED"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

const (
	PaymentCreditCard       = "CREDIT_CARD"
	PaymentConvenienceStore = "CONVENIENCE_STORE"
	PaymentCashOnDelivery   = "CASH_ON_DELIVERY"
)

// Cash-on-delivery orders carry a flat handling fee; everything else ships
// free.
const CashOnDeliveryFee int64 = 300

// validTransitions is the order state machine. Terminal states map to an
// empty set; refund is not a transition, it is gated on StatusCancelled.
var validTransitions = map[Status][]Status{
	StatusAccepted:  {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// ShippingAddress is the address snapshot frozen into the order at checkout.
type ShippingAddress struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Phone      string `json:"phone"`
}

// Order is the replayed aggregate state.
type Order struct {
	ID                   string
	CustomerID           string
	Items                []Item
	ShippingAddress      ShippingAddress
	PaymentMethod        string
	Subtotal             int64
	ShippingFee          int64
	Total                int64
	Status               Status
	TransactionID        string
	PaymentCode          string
	PaymentCodeExpiresAt time.Time
	RefundCompleted      bool
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (o *Order) GetID() string   { return o.ID }
func (o *Order) GetVersion() int { return o.Version }

func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError maps an invalid transition to its error code. Terminal
// states get their dedicated codes on cancel; everything else carries the
// current status and the allowed next statuses.
func (o *Order) transitionError(target Status) error {
	if target == StatusCancelled {
		switch o.Status {
		case StatusCompleted:
			return apperr.New(apperr.CodeOrderAlreadyCompleted, "order is already completed")
		case StatusCancelled:
			return apperr.New(apperr.CodeOrderAlreadyCancelled, "order is already cancelled")
		}
	}

	allowed := make([]string, 0, len(validTransitions[o.Status]))
	for _, s := range validTransitions[o.Status] {
		allowed = append(allowed, string(s))
	}
	msg := fmt.Sprintf("cannot transition order from %s to %s", o.Status, target)
	if len(allowed) > 0 {
		msg += fmt.Sprintf(" (allowed: %s)", strings.Join(allowed, ", "))
	}
	return apperr.New(apperr.CodeInvalidOrderStatusTransition, msg).WithFields(allowed...)
}

// ApplyEvent folds one event into the state. Status changes during replay
// never error; the log is the ground truth.
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderCreated:
		var e OrderCreated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		o.ID = e.OrderID
		o.CustomerID = e.CustomerID
		o.Items = e.Items
		o.ShippingAddress = e.ShippingAddress
		o.PaymentMethod = e.PaymentMethod
		o.Subtotal = e.Subtotal
		o.ShippingFee = e.ShippingFee
		o.Total = e.Total
		o.Status = StatusAccepted
		o.CreatedAt = e.CreatedAt
		o.UpdatedAt = e.CreatedAt

	case EventPaymentCompleted:
		var e PaymentCompleted
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		o.TransactionID = e.TransactionID
		o.UpdatedAt = e.CreatedAt

	case EventConvenienceStorePaymentIssued:
		var e ConvenienceStorePaymentIssued
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		o.PaymentCode = e.PaymentCode
		o.PaymentCodeExpiresAt = e.ExpiresAt
		o.UpdatedAt = e.CreatedAt

	case EventOrderShipped:
		o.Status = StatusShipped
		o.UpdatedAt = event.CreatedAt

	case EventOrderCompleted:
		o.Status = StatusCompleted
		o.UpdatedAt = event.CreatedAt

	case EventOrderCancelled:
		o.Status = StatusCancelled
		o.UpdatedAt = event.CreatedAt

	case EventRefundCompleted:
		o.RefundCompleted = true
		o.UpdatedAt = event.CreatedAt
	}

	o.Version = event.Version
	return nil
}

// Service owns load, decide and append for the order aggregate.
type Service struct {
	log store.EventLog
}

func NewService(log store.EventLog) *Service {
	return &Service{log: log}
}

// Load replays an order from its stream.
func (s *Service) Load(ctx context.Context, orderID string) (*Order, error) {
	o, found, err := aggregate.Load(ctx, s.log, orderID, func() *Order { return &Order{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(apperr.CodeOrderNotFound, "order not found")
	}
	return o, nil
}

// CreateParams are the checkout inputs frozen into OrderCreated.
type CreateParams struct {
	CustomerID      string
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   string
}

// Create appends OrderCreated for a fresh order id at expected version 0.
// Subtotal, fee and total are computed here so every consumer sees the same
// arithmetic.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, []store.Event, error) {
	if len(params.Items) == 0 {
		return nil, nil, apperr.New(apperr.CodeCartEmpty, "cart is empty")
	}
	switch params.PaymentMethod {
	case PaymentCreditCard, PaymentConvenienceStore, PaymentCashOnDelivery:
	default:
		return nil, nil, apperr.New(apperr.CodeValidationError, "unknown payment method").WithFields("payment_method")
	}

	var subtotal int64
	for _, item := range params.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	var shippingFee int64
	if params.PaymentMethod == PaymentCashOnDelivery {
		shippingFee = CashOnDeliveryFee
	}

	orderID := uuid.New().String()
	now := time.Now().UTC()

	events, err := s.log.Append(ctx, orderID, store.AggregateTypeOrder, []store.EventData{{
		EventType: EventOrderCreated,
		Payload: OrderCreated{
			OrderID:         orderID,
			CustomerID:      params.CustomerID,
			Items:           params.Items,
			ShippingAddress: params.ShippingAddress,
			PaymentMethod:   params.PaymentMethod,
			Subtotal:        subtotal,
			ShippingFee:     shippingFee,
			Total:           subtotal + shippingFee,
			CreatedAt:       now,
		},
	}}, 0)
	if err != nil {
		return nil, nil, err
	}

	o := &Order{}
	for _, ev := range events {
		if err := o.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return o, events, nil
}

// RecordPayment appends PaymentCompleted after a successful card charge.
func (s *Service) RecordPayment(ctx context.Context, orderID, transactionID string) (*Order, []store.Event, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return s.appendAndApply(ctx, o, store.EventData{
		EventType: EventPaymentCompleted,
		Payload:   PaymentCompleted{OrderID: orderID, TransactionID: transactionID, CreatedAt: time.Now().UTC()},
	})
}

// IssueConvenienceStoreCode appends ConvenienceStorePaymentIssued.
func (s *Service) IssueConvenienceStoreCode(ctx context.Context, orderID, paymentCode string, expiresAt time.Time) (*Order, []store.Event, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return s.appendAndApply(ctx, o, store.EventData{
		EventType: EventConvenienceStorePaymentIssued,
		Payload:   ConvenienceStorePaymentIssued{OrderID: orderID, PaymentCode: paymentCode, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()},
	})
}

func (s *Service) Ship(ctx context.Context, orderID string) (*Order, []store.Event, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.CanTransitionTo(StatusShipped) {
		return nil, nil, o.transitionError(StatusShipped)
	}
	return s.appendAndApply(ctx, o, store.EventData{
		EventType: EventOrderShipped,
		Payload:   OrderShipped{OrderID: orderID, CreatedAt: time.Now().UTC()},
	})
}

func (s *Service) Complete(ctx context.Context, orderID string) (*Order, []store.Event, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.CanTransitionTo(StatusCompleted) {
		return nil, nil, o.transitionError(StatusCompleted)
	}
	return s.appendAndApply(ctx, o, store.EventData{
		EventType: EventOrderCompleted,
		Payload:   OrderCompleted{OrderID: orderID, CreatedAt: time.Now().UTC()},
	})
}

func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*Order, []store.Event, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.CanTransitionTo(StatusCancelled) {
		return nil, nil, o.transitionError(StatusCancelled)
	}
	return s.appendAndApply(ctx, o, store.EventData{
		EventType: EventOrderCancelled,
		Payload:   OrderCancelled{OrderID: orderID, Reason: reason, CreatedAt: time.Now().UTC()},
	})
}

// CanRefund reports whether a refund may be issued for the order's current
// state. Callers that talk to the payment gateway check this before charging
// the refund so a rejected order never reaches the provider.
func (o *Order) CanRefund() error {
	if o.Status != StatusCancelled {
		return apperr.New(apperr.CodeOrderNotCancelled, "only cancelled orders can be refunded")
	}
	if o.RefundCompleted {
		return apperr.New(apperr.CodeOrderAlreadyRefunded, "order has already been refunded")
	}
	if o.PaymentMethod == PaymentCreditCard && o.TransactionID == "" {
		return apperr.New(apperr.CodeRefundTransactionNotFound, "no payment transaction recorded for this order")
	}
	return nil
}

// Refund appends RefundCompleted for a cancelled order. The gateway call is
// the caller's responsibility; the decision lives here.
func (s *Service) Refund(ctx context.Context, orderID string) (*Order, []store.Event, error) {
	o, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if err := o.CanRefund(); err != nil {
		return nil, nil, err
	}
	return s.appendAndApply(ctx, o, store.EventData{
		EventType: EventRefundCompleted,
		Payload:   RefundCompleted{OrderID: orderID, Amount: o.Total, CreatedAt: time.Now().UTC()},
	})
}

func (s *Service) appendAndApply(ctx context.Context, o *Order, data store.EventData) (*Order, []store.Event, error) {
	events, err := s.log.Append(ctx, o.ID, store.AggregateTypeOrder, []store.EventData{data}, o.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := o.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return o, events, nil
}
