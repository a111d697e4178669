package billing

import (
	"strings"

	"github.com/ManuelReschke/BillFox/app/models"
)

// Provider identifies an external payment provider.
type Provider string

const (
	ProviderPayMongo Provider = models.BillingProviderPayMongo
)

// Method identifies how the payer settles a checkout. MethodWebhook is a
// sentinel used to resolve the gateway that verifies provider callbacks; it
// never starts a checkout.
type Method string

const (
	MethodCard    Method = "card"
	MethodGCash   Method = "gcash"
	MethodGrabPay Method = "grab_pay"
	MethodPayMaya Method = "paymaya"
	MethodWebhook Method = "webhook"
)

var knownProviders = map[Provider]struct{}{
	ProviderPayMongo: {},
}

var knownMethods = map[Method]struct{}{
	MethodCard:    {},
	MethodGCash:   {},
	MethodGrabPay: {},
	MethodPayMaya: {},
	MethodWebhook: {},
}

// ParseProvider normalizes and validates a provider name.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownProviders[p]; !ok {
		return "", &InvalidArgumentError{Field: "provider", Value: raw}
	}
	return p, nil
}

// ParseMethod normalizes and validates a payment method name.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownMethods[m]; !ok {
		return "", &InvalidArgumentError{Field: "method", Value: raw}
	}
	return m, nil
}

// CheckoutOptions are the optional redirect targets of a checkout session.
type CheckoutOptions struct {
	SuccessURL string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

// InitiateResult is returned by Service.Initiate after commit.
type InitiateResult struct {
	Subscription *models.Subscription `json:"subscription"`
	Payment      *models.Payment      `json:"payment"`
	CheckoutURL  string               `json:"checkout_url"`
}

// WebhookOutcome describes what HandleWebhook did with a delivery.
type WebhookOutcome struct {
	Result    *WebhookResult
	Duplicate bool
	// Applied is true when the delivery changed a payment.
	Applied bool
	// Ignored is true when the event referenced no known payment.
	Ignored bool
}
