package email

import (
	"fmt"
	"strings"
)

// OrderItem is one line of an order as the mail renders it.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

const bodyStyle = `font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;`
const headerStyle = `background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); padding: 30px; border-radius: 10px 10px 0 0;`
const panelStyle = `background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;`

// BuildOrderConfirmationBody renders the order confirmation HTML.
func BuildOrderConfirmationBody(params OrderConfirmationParams) string {
	var itemsHTML strings.Builder
	for _, item := range params.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">¥%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">¥%s</td>
			</tr>`,
			name,
			item.Quantity,
			formatNumber(item.UnitPrice),
			formatNumber(item.UnitPrice*int64(item.Quantity)),
		))
	}

	paymentCodeHTML := ""
	if params.PaymentCode != "" {
		paymentCodeHTML = fmt.Sprintf(`
		<div style="background: #fff8e1; padding: 15px; border-radius: 5px; margin: 20px 0; border: 1px solid #ffe082;">
			<p style="margin: 0; font-size: 14px; color: #666;">コンビニ払込票番号</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
			<p style="margin: 5px 0 0 0; font-size: 12px; color: #999;">お支払い期限は発行から72時間です。</p>
		</div>`, params.PaymentCode)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="`+bodyStyle+`">
	<div style="`+headerStyle+`">
		<h1 style="color: white; margin: 0; font-size: 24px;">ご注文ありがとうございます</h1>
	</div>

	<div style="`+panelStyle+`">
		<p style="margin-top: 0;">この度はご注文いただき、誠にありがとうございます。</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">注文番号</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>
		%s
		<h2 style="font-size: 18px; border-bottom: 2px solid #667eea; padding-bottom: 10px;">ご注文内容</h2>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">商品名</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">数量</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">単価</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">小計</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<p style="margin: 0; font-size: 14px; color: #666;">商品小計 ¥%s ／ 送料 ¥%s</p>
			<span style="font-size: 14px; color: #666;">合計金額</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">¥%s</span>
		</div>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			このメールは自動送信されています。ご不明な点がございましたら、サポートまでお問い合わせください。
		</p>
	</div>
</body>
</html>`,
		params.OrderID,
		paymentCodeHTML,
		itemsHTML.String(),
		formatNumber(params.Subtotal),
		formatNumber(params.ShippingFee),
		formatNumber(params.Total))
}

// BuildRefundNotificationBody renders the refund completion HTML.
func BuildRefundNotificationBody(params RefundNotificationParams) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="`+bodyStyle+`">
	<div style="`+headerStyle+`">
		<h1 style="color: white; margin: 0; font-size: 24px;">ご返金が完了しました</h1>
	</div>

	<div style="`+panelStyle+`">
		<p style="margin-top: 0;">下記のご注文について返金処理が完了いたしました。</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">注文番号</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">返金額</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">¥%s</span>
		</div>

		<p style="font-size: 12px; color: #999;">
			返金の反映までお支払い方法により数日かかる場合がございます。
		</p>
	</div>
</body>
</html>`, params.OrderID, formatNumber(params.Amount))
}

// BuildPasswordResetBody renders the password reset link mail.
func BuildPasswordResetBody(resetURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="`+bodyStyle+`">
	<div style="`+headerStyle+`">
		<h1 style="color: white; margin: 0; font-size: 24px;">パスワード再設定</h1>
	</div>

	<div style="`+panelStyle+`">
		<p style="margin-top: 0;">パスワード再設定のリクエストを受け付けました。下記のリンクから再設定を行ってください。</p>

		<p style="text-align: center; margin: 30px 0;">
			<a href="%s" style="background: #667eea; color: white; padding: 12px 30px; border-radius: 5px; text-decoration: none; font-weight: bold;">パスワードを再設定する</a>
		</p>

		<p style="font-size: 12px; color: #999;">
			このリンクの有効期限は1時間です。心当たりがない場合はこのメールを破棄してください。
		</p>
	</div>
</body>
</html>`, resetURL)
}

// BuildEmailVerificationBody renders the address verification mail.
func BuildEmailVerificationBody(verifyURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="`+bodyStyle+`">
	<div style="`+headerStyle+`">
		<h1 style="color: white; margin: 0; font-size: 24px;">メールアドレスの確認</h1>
	</div>

	<div style="`+panelStyle+`">
		<p style="margin-top: 0;">ご登録ありがとうございます。下記のリンクからメールアドレスの確認を完了してください。</p>

		<p style="text-align: center; margin: 30px 0;">
			<a href="%s" style="background: #667eea; color: white; padding: 12px 30px; border-radius: 5px; text-decoration: none; font-weight: bold;">メールアドレスを確認する</a>
		</p>

		<p style="font-size: 12px; color: #999;">
			このリンクの有効期限は24時間です。
		</p>
	</div>
</body>
</html>`, verifyURL)
}

// formatNumber inserts comma separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}
	return result.String()
}
