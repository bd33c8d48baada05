// Package payments wraps the Razorpay gateway. The gateway itself is an
// opaque external collaborator: order creation, payment fetch and refunds
// go through its SDK; signature checks are plain HMAC-SHA256 so they stay
// unit-testable offline.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	razorpay "github.com/razorpay/razorpay-go"
)

type Gateway struct {
	client        *razorpay.Client
	KeyID         string
	keySecret     string
	webhookSecret string
}

func New(keyID, keySecret, webhookSecret string) *Gateway {
	return &Gateway{
		client:        razorpay.NewClient(keyID, keySecret),
		KeyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

// CreateOrder registers a gateway order. Amount is in paise.
func (g *Gateway) CreateOrder(amountPaise int64, receipt string, notes map[string]interface{}) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  receipt,
		"notes":    notes,
	}
	return g.client.Order.Create(data, nil)
}

// FetchPayment returns the gateway's view of a payment.
func (g *Gateway) FetchPayment(paymentID string) (map[string]interface{}, error) {
	return g.client.Payment.Fetch(paymentID, nil, nil)
}

// Refund issues a (partial) refund in paise.
func (g *Gateway) Refund(paymentID string, amountPaise int64, notes map[string]interface{}) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"notes": notes,
	}
	return g.client.Payment.Refund(paymentID, int(amountPaise), data, nil)
}

// VerifyPaymentSignature checks the checkout callback signature:
// HMAC-SHA256(order_id + "|" + payment_id, key secret).
func (g *Gateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return SignatureMatches([]byte(orderID+"|"+paymentID), g.keySecret, signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw webhook body.
func (g *Gateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return SignatureMatches(body, g.webhookSecret, signature)
}

// SignatureMatches is the shared constant-time HMAC-SHA256 hex comparison.
func SignatureMatches(payload []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
