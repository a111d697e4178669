package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuelReschke/BillFox/app/models"
)

const (
	payMongoSignatureHeader = "Paymongo-Signature"

	eventCheckoutSessionCompleted = "checkout.session.completed"
	eventPaymentIntentSucceeded   = "payment_intent.succeeded"

	maxResponseBodyBytes = 1 << 20
)

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"VND": {},
}

// PayMongoGateway talks to the PayMongo REST API. One type serves every
// payment method; instances differ only in methodTypes. An instance with no
// method types only verifies webhooks.
type PayMongoGateway struct {
	cfg         PayMongoConfig
	method      Method
	methodTypes []string
	httpClient  *http.Client
	metrics     *Metrics
}

// NewPayMongoGateway validates cfg and builds a gateway for the given
// method. Missing credentials fail here, not on first use.
func NewPayMongoGateway(cfg PayMongoConfig, method Method, methodTypes []string, metrics *Metrics) (*PayMongoGateway, error) {
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &PayMongoGateway{
		cfg:         cfg,
		method:      method,
		methodTypes: append([]string(nil), methodTypes...),
		httpClient:  client,
		metrics:     metrics,
	}, nil
}

// MethodTypes returns the payment method codes sent with each checkout.
func (g *PayMongoGateway) MethodTypes() []string {
	return append([]string(nil), g.methodTypes...)
}

type checkoutLineItem struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type checkoutSessionAttributes struct {
	LineItems          []checkoutLineItem `json:"line_items"`
	PaymentMethodTypes []string           `json:"payment_method_types"`
	SuccessURL         string             `json:"success_url,omitempty"`
	CancelURL          string             `json:"cancel_url,omitempty"`
	Description        string             `json:"description"`
	ReferenceNumber    string             `json:"reference_number,omitempty"`
	ShowDescription    bool               `json:"show_description"`
	ShowLineItems      bool               `json:"show_line_items"`
}

type checkoutSessionRequest struct {
	Data struct {
		Attributes checkoutSessionAttributes `json:"attributes"`
	} `json:"data"`
}

func (g *PayMongoGateway) CreateCheckout(ctx context.Context, payment *models.Payment, opts CheckoutOptions) (*CheckoutResponse, error) {
	if len(g.methodTypes) == 0 {
		return nil, &GatewayConfigurationError{
			Key: NewGatewayKey(ProviderPayMongo, g.method),
			Err: errors.New("gateway does not initiate checkouts"),
		}
	}
	if payment == nil {
		return nil, &InvalidArgumentError{Field: "payment", Value: "<nil>"}
	}

	amount, err := toMinorUnits(payment.Amount, payment.Currency)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(payment.Description)
	if description == "" {
		description = fmt.Sprintf("Subscription payment #%d", payment.ID)
	}

	var body checkoutSessionRequest
	body.Data.Attributes = checkoutSessionAttributes{
		LineItems: []checkoutLineItem{{
			Amount:   amount,
			Currency: strings.ToUpper(payment.Currency),
			Name:     description,
			Quantity: 1,
		}},
		PaymentMethodTypes: g.MethodTypes(),
		SuccessURL:         opts.SuccessURL,
		CancelURL:          opts.CancelURL,
		Description:        description,
		ReferenceNumber:    payment.ReferenceNumber,
		ShowDescription:    true,
		ShowLineItems:      true,
	}

	respBody, err := g.do(ctx, http.MethodPost, "/checkout_sessions", body, "checkout")
	if err != nil {
		return nil, err
	}

	var out struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				CheckoutURL   string          `json:"checkout_url"`
				PaymentIntent json.RawMessage `json:"payment_intent"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &InvalidGatewayResponseError{Operation: "checkout", Missing: "a JSON body"}
	}
	if strings.TrimSpace(out.Data.Attributes.CheckoutURL) == "" {
		return nil, &InvalidGatewayResponseError{Operation: "checkout", Missing: "data.attributes.checkout_url"}
	}
	if strings.TrimSpace(out.Data.ID) == "" {
		return nil, &InvalidGatewayResponseError{Operation: "checkout", Missing: "data.id"}
	}

	metadata := map[string]interface{}{
		"checkout_session_id":  out.Data.ID,
		"payment_method_types": g.MethodTypes(),
	}
	if intentID := paymentIntentRef(out.Data.Attributes.PaymentIntent); intentID != "" {
		metadata["payment_intent_id"] = intentID
	}
	if payment.ReferenceNumber != "" {
		metadata["reference_number"] = payment.ReferenceNumber
	}

	return &CheckoutResponse{
		CheckoutURL: out.Data.Attributes.CheckoutURL,
		ReferenceID: out.Data.ID,
		Metadata:    metadata,
	}, nil
}

type webhookAttributes struct {
	Status            string          `json:"status"`
	PaidAt            flexibleTime    `json:"paid_at"`
	PaymentIntentID   string          `json:"payment_intent_id"`
	PaymentIntent     json.RawMessage `json:"payment_intent"`
	CheckoutSessionID string          `json:"checkout_session_id"`
}

type webhookEvent struct {
	Data struct {
		ID         string            `json:"id"`
		Type       string            `json:"type"`
		Attributes webhookAttributes `json:"attributes"`
	} `json:"data"`
}

func (g *PayMongoGateway) VerifyWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	signature := strings.TrimSpace(req.Headers.Get(payMongoSignatureHeader))
	if signature == "" {
		return nil, ErrMissingSignature
	}
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, &ConfigurationError{Setting: "WebhookSecret", Reason: "is required"}
	}
	if !VerifyWebhookSignature(req.Body, signature, g.cfg.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return nil, &MalformedPayloadError{Reason: "body is not a valid event", Err: err}
	}
	data := event.Data
	if strings.TrimSpace(data.ID) == "" {
		return nil, &MalformedPayloadError{Reason: "data.id is missing"}
	}
	if strings.TrimSpace(data.Type) == "" {
		return nil, &MalformedPayloadError{Reason: "data.type is missing"}
	}

	result := &WebhookResult{
		Status:      WebhookStatusPending,
		ReferenceID: data.ID,
		EventID:     data.ID,
		EventType:   data.Type,
		Raw:         append(json.RawMessage(nil), req.Body...),
	}

	switch data.Type {
	case eventCheckoutSessionCompleted:
		intentID := data.Attributes.PaymentIntentID
		if intentID == "" {
			intentID = paymentIntentRef(data.Attributes.PaymentIntent)
		}
		if intentID == "" {
			return nil, &MalformedPayloadError{Reason: "checkout session has no payment intent"}
		}
		intent, err := g.fetchPaymentIntent(ctx, intentID)
		if err != nil {
			return nil, err
		}
		result.PaymentIntentID = intentID
		result.Status = MapPaymentIntentStatus(intent.Status)
		result.PaidAt = intent.PaidAt.Time
	case eventPaymentIntentSucceeded:
		status := data.Attributes.Status
		if strings.TrimSpace(status) == "" {
			status = "succeeded"
		}
		result.PaymentIntentID = data.ID
		result.Status = MapPaymentIntentStatus(status)
		result.PaidAt = data.Attributes.PaidAt.Time
		if data.Attributes.CheckoutSessionID != "" {
			result.ReferenceID = data.Attributes.CheckoutSessionID
		}
	}

	return result, nil
}

type paymentIntentAttributes struct {
	Status string       `json:"status"`
	PaidAt flexibleTime `json:"paid_at"`
}

func (g *PayMongoGateway) fetchPaymentIntent(ctx context.Context, intentID string) (*paymentIntentAttributes, error) {
	respBody, err := g.do(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(intentID), nil, "payment_intent")
	if err != nil {
		return nil, err
	}

	var out struct {
		Data struct {
			Attributes paymentIntentAttributes `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &InvalidGatewayResponseError{Operation: "payment_intent", Missing: "a JSON body"}
	}
	if strings.TrimSpace(out.Data.Attributes.Status) == "" {
		return nil, &InvalidGatewayResponseError{Operation: "payment_intent", Missing: "data.attributes.status"}
	}
	return &out.Data.Attributes, nil
}

// do sends an authenticated request and returns the body of a 2xx response.
func (g *PayMongoGateway) do(ctx context.Context, method, path string, payload interface{}, operation string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, &GatewayRequestError{Operation: operation, Err: err}
	}
	req.SetBasicAuth(g.cfg.SecretKey, "")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := g.httpClient.Do(req)
	g.metrics.observeGatewayRequest(operation, started)
	if err != nil {
		return nil, &GatewayRequestError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &GatewayRequestError{Operation: operation, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayRequestError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// toMinorUnits converts a decimal amount to the currency's smallest unit.
func toMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if !amount.IsPositive() {
		return 0, &InvalidArgumentError{Field: "amount", Value: amount.String()}
	}
	exp := int32(2)
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		exp = 0
	}
	return amount.Shift(exp).Round(0).IntPart(), nil
}

// paymentIntentRef reads an intent id given either as a string or as an
// object with an id field.
func paymentIntentRef(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}

// flexibleTime accepts unix seconds (number or numeric string), RFC 3339
// strings and null.
type flexibleTime struct {
	Time *time.Time
}

func (f *flexibleTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		f.Time = nil
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			f.Time = nil
			return nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		f.Time = &t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("unsupported timestamp %q", s)
	}
	t = t.UTC()
	f.Time = &t
	return nil
}
