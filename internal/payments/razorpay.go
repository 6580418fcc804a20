package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Order is a gateway order the client completes checkout against.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status"`
}

// Gateway is the payment processor as seen by the server.
type Gateway interface {
	// CreateOrder opens an order for amount in the currency's smallest unit.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	// VerifySignature checks the signature returned to the client after checkout.
	VerifySignature(orderID, paymentID, signature string) bool
	// Capture captures an authorised payment.
	Capture(ctx context.Context, paymentID string, amount int64, currency string) error
	// KeyID is the public key handed to the checkout widget.
	KeyID() string
}

// RazorpayGateway talks to the Razorpay REST API.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

// NewRazorpayGateway creates a gateway client. A nil client gets a 15s timeout.
func NewRazorpayGateway(keyID, keySecret, baseURL string, client *http.Client) *RazorpayGateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RazorpayGateway{keyID: keyID, keySecret: keySecret, baseURL: baseURL, client: client}
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// CreateOrder creates an order with manual capture.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	payload := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 0,
	}
	var order Order
	if err := g.do(ctx, http.MethodPost, "/orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Capture captures paymentID for amount.
func (g *RazorpayGateway) Capture(ctx context.Context, paymentID string, amount int64, currency string) error {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
	}
	return g.do(ctx, http.MethodPost, "/payments/"+paymentID+"/capture", payload, nil)
}

// VerifySignature checks HMAC-SHA256(orderID|paymentID) under the key secret.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, g.keySecret)
}

// Sign computes the checkout signature of an order/payment pair.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches Sign(orderID, paymentID, secret).
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := Sign(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s %s", e.StatusCode, e.Code, e.Description)
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		_ = json.Unmarshal(raw, &envelope)
		envelope.Error.StatusCode = resp.StatusCode
		return &envelope.Error
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
