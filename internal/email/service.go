// Package email sends the shop's transactional mail over SMTP with HTML
// bodies. Order mail goes through the retry queue; auth mail is sent
// fire-and-forget because its tokens expire on their own.
package email

import (
	"context"
	"fmt"
	"net/smtp"
)

// OrderConfirmationParams carries everything the confirmation mail renders.
type OrderConfirmationParams struct {
	To          string
	OrderID     string
	Items       []OrderItem
	Subtotal    int64
	ShippingFee int64
	Total       int64
	PaymentCode string
}

// RefundNotificationParams carries the refund mail inputs.
type RefundNotificationParams struct {
	To      string
	OrderID string
	Amount  int64
}

// Sender is the typed send surface used by the queue consumer and the auth
// service.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, params OrderConfirmationParams) error
	SendRefundNotification(ctx context.Context, params RefundNotificationParams) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	SendEmailVerification(ctx context.Context, to, verifyURL string) error
}

// Service sends over plain SMTP.
type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{host: host, port: port, from: from}
}

func (s *Service) SendOrderConfirmation(ctx context.Context, params OrderConfirmationParams) error {
	subject := fmt.Sprintf("【注文確認】ご注文ありがとうございます（注文番号: %s）", shortOrderID(params.OrderID))
	return s.send(params.To, subject, BuildOrderConfirmationBody(params))
}

func (s *Service) SendRefundNotification(ctx context.Context, params RefundNotificationParams) error {
	subject := fmt.Sprintf("【返金完了】ご返金のお知らせ（注文番号: %s）", shortOrderID(params.OrderID))
	return s.send(params.To, subject, BuildRefundNotificationBody(params))
}

func (s *Service) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	return s.send(to, "【パスワード再設定】再設定用リンクのお知らせ", BuildPasswordResetBody(resetURL))
}

func (s *Service) SendEmailVerification(ctx context.Context, to, verifyURL string) error {
	return s.send(to, "【メールアドレス確認】ご登録ありがとうございます", BuildEmailVerificationBody(verifyURL))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

func shortOrderID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}
