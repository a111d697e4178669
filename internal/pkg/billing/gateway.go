package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ManuelReschke/BillFox/app/models"
)

// Gateway is one (provider, method) combination able to start checkouts and
// verify the provider's webhook callbacks.
type Gateway interface {
	CreateCheckout(ctx context.Context, payment *models.Payment, opts CheckoutOptions) (*CheckoutResponse, error)
	VerifyWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error)
}

// CheckoutResponse is the provider's answer to a checkout request.
type CheckoutResponse struct {
	CheckoutURL string
	ReferenceID string
	Metadata    map[string]interface{}
}

// WebhookRequest is an unparsed inbound webhook. Body must be the exact bytes
// received; signatures are computed over them.
type WebhookRequest struct {
	Headers http.Header
	Body    []byte
}

// WebhookStatus is the normalized payment outcome reported by a webhook.
type WebhookStatus string

const (
	WebhookStatusPaid    WebhookStatus = "paid"
	WebhookStatusPending WebhookStatus = "pending"
	WebhookStatusFailed  WebhookStatus = "failed"
)

// IsFinal reports whether the status settles a payment.
func (s WebhookStatus) IsFinal() bool {
	return s == WebhookStatusPaid || s == WebhookStatusFailed
}

// WebhookResult is the verified, normalized content of one webhook delivery.
type WebhookResult struct {
	Status          WebhookStatus
	ReferenceID     string
	PaidAt          *time.Time
	EventID         string
	EventType       string
	PaymentIntentID string
	Raw             json.RawMessage
}
