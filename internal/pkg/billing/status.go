package billing

import (
	"strings"

	"github.com/ManuelReschke/BillFox/app/models"
)

// paymentIntentStatuses maps provider payment-intent statuses to the
// normalized taxonomy. Anything absent maps to pending.
var paymentIntentStatuses = map[string]WebhookStatus{
	"succeeded":               WebhookStatusPaid,
	"paid":                    WebhookStatusPaid,
	"awaiting_payment_method": WebhookStatusPending,
	"awaiting_next_action":    WebhookStatusPending,
	"processing":              WebhookStatusPending,
	"failed":                  WebhookStatusFailed,
	"canceled":                WebhookStatusFailed,
	"cancelled":               WebhookStatusFailed,
}

// MapPaymentIntentStatus normalizes a provider status string. Unknown values
// never map to paid or failed.
func MapPaymentIntentStatus(status string) WebhookStatus {
	if s, ok := paymentIntentStatuses[strings.ToLower(strings.TrimSpace(status))]; ok {
		return s
	}
	return WebhookStatusPending
}

// paymentStatusFor returns the payment status a webhook status settles to.
func paymentStatusFor(s WebhookStatus) string {
	switch s {
	case WebhookStatusPaid:
		return models.PaymentStatusPaid
	case WebhookStatusFailed:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
